package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	firebase "firebase.google.com/go/v4"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"gopkg.in/yaml.v3"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/api"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/platform/fcm"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/queue"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/retention"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/storage/cache"
	fsStore "github.com/mekobeko2222/bubbles-ecommerce-app/internal/storage/firestore"
	"github.com/mekobeko2222/bubbles-ecommerce-app/notificationservice"
	"github.com/mekobeko2222/bubbles-ecommerce-app/notificationservice/config"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
)

//go:embed local.yaml
var configFile []byte

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("service", "bubbles-notify")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase App", "err", err)
		os.Exit(1)
	}
	fcmMessaging, err := fbApp.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to create FCM messaging client", "err", err)
		os.Exit(1)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		logger.Error("Failed to create Firebase Auth client", "err", err)
		os.Exit(1)
	}

	// --- Stores (Decorated) ---
	var tokens dispatch.AdminTokenStore = fsStore.NewAdminTokenStore(fsClient)
	var reconciler dispatch.Reconciler = fsStore.NewReconciler(fsClient, logger)
	queueStore := fsStore.NewQueueStore(fsClient)
	logger.Info("AdminTokenStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		tokens = cache.NewCachedAdminTokenStore(tokens, redisClient, cfg.Redis.TokenTTL, logger)
		reconciler = cache.NewInvalidatingReconciler(reconciler, redisClient, logger)
		logger.Info("AdminTokenStore upgraded", "type", "redis_cached_firestore")
	}

	// --- Dispatch & Workflows ---
	metrics := fcm.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := fcm.NewDispatcher(fcmMessaging, logger, fcm.WithMetrics(metrics))

	service := notify.NewService(
		dispatcher,
		tokens,
		fsStore.NewUserStore(fsClient),
		queueStore,
		reconciler,
		logger,
		notify.WithCustomerTopic(cfg.CustomerTopic),
	)
	queueProcessor := queue.NewProcessor(queueStore, service, logger)

	sweeper, err := retention.NewSweeper(cfg.Sweep, queueStore, tokens, logger)
	if err != nil {
		logger.Error("Retention sweeper config invalid", "err", err)
		os.Exit(1)
	}

	// --- Consumer & Service ---
	consumer, err := newEventConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Event consumer failed", "err", err)
		os.Exit(1)
	}

	svc, err := notificationservice.New(
		cfg,
		consumer,
		service,
		tokens,
		queueProcessor,
		sweeper,
		api.NewFirebaseAuthMiddleware(authClient, logger),
		promhttp.Handler(),
		logger,
	)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown finished with errors", "err", err)
		}
	}()

	logger.Info("Starting service...", "addr", cfg.ListenAddr)
	if err := svc.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

// newEventConsumer makes sure the trigger-event subscription exists, with its
// dead-letter policy, and returns a consumer for it.
func newEventConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: durationpb.New(10 * time.Second),
			MaximumBackoff: durationpb.New(10 * time.Minute),
		},
		EnableMessageOrdering: false,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	} else {
		logger.Warn("No dead-letter topic configured; malformed events will be redelivered")
	}

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub %s: %w", sub, err)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
