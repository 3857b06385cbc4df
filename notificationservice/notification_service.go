// Package notificationservice assembles the HTTP endpoints, the trigger
// pipeline and the retention sweeper into one runnable service.
package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/api"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/pipeline"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/retention"
	"github.com/mekobeko2222/bubbles-ecommerce-app/notificationservice/config"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.Event]
	sweeper         *retention.Sweeper
	logger          *slog.Logger
}

// New assembles the service. metrics may be nil to leave /metrics unmounted.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	service *notify.Service,
	tokens dispatch.AdminTokenStore,
	queue pipeline.QueueRunner,
	sweeper *retention.Sweeper,
	authMiddleware func(http.Handler) http.Handler,
	metrics http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Trigger pipeline
	processor := pipeline.NewProcessor(service, queue, logger)
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.EventTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 3. APIs
	publicAPI := api.NewPublicAPI(service, logger)
	tokenAPI := api.NewTokenAPI(tokens, service, logger)
	notificationAPI := api.NewNotificationAPI(service, logger)

	mux := baseServer.Mux()

	// Public endpoints answer any origin, including their own preflight.
	public := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, api.PublicCORS(handlerFunc))
	}
	public("/api/notify-admins", publicAPI.NotifyAdmins)
	public("/api/notify-customer", publicAPI.NotifyCustomer)
	public("/api/notify-order-status", publicAPI.NotifyOrderStatus)

	// Callable endpoints require a Firebase ID token.
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}
	handle("POST /api/v1/tokens/admin", tokenAPI.RegisterAdminToken)
	handle("DELETE /api/v1/tokens/admin", tokenAPI.RemoveAdminToken)
	handle("POST /api/v1/notifications/manual", notificationAPI.SendManual)
	handle("POST /api/v1/notifications/test", notificationAPI.SendTest)
	handle("GET /api/v1/notifications/stats", notificationAPI.Stats)

	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		sweeper:         sweeper,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	if w.sweeper != nil {
		w.sweeper.Start()
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.sweeper != nil {
		w.sweeper.Stop(ctx)
	}
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
