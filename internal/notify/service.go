// Package notify holds the delivery workflows shared by the HTTP endpoints,
// the trigger pipeline and the queue processor.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/format"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// StatusOutcome describes what NotifyCustomerOfStatus did.
type StatusOutcome string

const (
	StatusSent      StatusOutcome = "sent"
	StatusUnchanged StatusOutcome = "unchanged"
	StatusIgnored   StatusOutcome = "ignored"
	StatusNoUser    StatusOutcome = "no_user"
	StatusNoToken   StatusOutcome = "no_token"
)

// Service composes the stores, the dispatcher and the reconciler.
type Service struct {
	dispatcher dispatch.Dispatcher
	tokens     dispatch.AdminTokenStore
	users      dispatch.UserStore
	queue      dispatch.QueueStore
	reconciler dispatch.Reconciler
	customers  string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCustomerTopic overrides the broadcast topic for customer messages.
func WithCustomerTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.customers = topic
		}
	}
}

func NewService(
	dispatcher dispatch.Dispatcher,
	tokens dispatch.AdminTokenStore,
	users dispatch.UserStore,
	queue dispatch.QueueStore,
	reconciler dispatch.Reconciler,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		dispatcher: dispatcher,
		tokens:     tokens,
		users:      users,
		queue:      queue,
		reconciler: reconciler,
		customers:  notification.CustomerTopic,
		now:        time.Now,
		logger:     logger.With("component", "NotifyService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock, shared with callers that timestamp messages.
func (s *Service) Now() time.Time { return s.now() }

// BroadcastToAdmins sends msg to every active admin token. Having no admins
// is not an error.
func (s *Service) BroadcastToAdmins(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	tokens, err := s.tokens.ActiveTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.logger.Info("No active admin tokens, skipping broadcast")
		return &notification.DeliveryResult{}, nil
	}
	return s.send(ctx, msg.WithTarget(notification.ToTokens(tokens)))
}

func (s *Service) SendToToken(ctx context.Context, token string, msg notification.Message) (*notification.DeliveryResult, error) {
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	return s.send(ctx, msg.WithTarget(notification.ToToken(token)))
}

func (s *Service) SendToTopic(ctx context.Context, topic string, msg notification.Message) (*notification.DeliveryResult, error) {
	if topic == "" {
		topic = s.customers
	}
	return s.send(ctx, msg.WithTarget(notification.ToTopic(topic)))
}

// SendToUser sends msg to the token on the user's profile.
func (s *Service) SendToUser(ctx context.Context, userID string, msg notification.Message) (*notification.DeliveryResult, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.FCMToken == "" {
		return nil, status.Error(codes.NotFound, "User FCM token not found")
	}
	return s.send(ctx, msg.WithTarget(notification.ToToken(user.FCMToken)))
}

// SendToAdmin sends msg to the token registered by one admin.
func (s *Service) SendToAdmin(ctx context.Context, ownerID string, msg notification.Message) (*notification.DeliveryResult, error) {
	record, err := s.tokens.Get(ctx, ownerID)
	if errors.Is(err, notification.ErrNotFound) || (err == nil && record.Token == "") {
		return nil, status.Error(codes.NotFound, "Admin token not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin token: %w", err)
	}
	return s.send(ctx, msg.WithTarget(notification.ToToken(record.Token)))
}

// NotifyAdminsOfOrder broadcasts the new-order alert.
func (s *Service) NotifyAdminsOfOrder(ctx context.Context, order notification.Order) (*notification.DeliveryResult, error) {
	s.logger.Info("New order placed", "orderId", order.ID)
	return s.BroadcastToAdmins(ctx, format.NewOrder(order.Summary()))
}

// NotifyCustomerOfStatus tells the order's customer about a status change.
// Unchanged or unannounced statuses, and customers without a device, are
// skipped without error.
func (s *Service) NotifyCustomerOfStatus(ctx context.Context, change notification.StatusChange) (StatusOutcome, *notification.DeliveryResult, error) {
	before, after := change.Before.OrderStatus, change.After.OrderStatus
	if before == after {
		return StatusUnchanged, nil, nil
	}

	msg, ok := format.StatusChange(change.OrderID, after)
	if !ok {
		s.logger.Debug("Status change not announced", "orderId", change.OrderID, "status", after)
		return StatusIgnored, nil, nil
	}

	user, err := s.user(ctx, change.After.UserID)
	if status.Code(err) == codes.NotFound {
		s.logger.Warn("Customer not found for order", "orderId", change.OrderID, "userId", change.After.UserID)
		return StatusNoUser, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	if user.FCMToken == "" {
		s.logger.Info("Customer has no FCM token", "orderId", change.OrderID, "userId", user.ID)
		return StatusNoToken, nil, nil
	}

	s.logger.Info("Order status changed", "orderId", change.OrderID, "from", before, "to", after)
	result, err := s.send(ctx, msg.WithTarget(notification.ToToken(user.FCMToken)))
	if err != nil {
		return "", result, err
	}
	return StatusSent, result, nil
}

// Stats reads the dashboard counters concurrently.
func (s *Service) Stats(ctx context.Context) (*notification.Stats, error) {
	now := s.now()
	stats := &notification.Stats{LastUpdated: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.tokens.CountActive(gctx)
		stats.ActiveAdminTokens = n
		return err
	})
	g.Go(func() error {
		n, err := s.queue.CountPending(gctx)
		stats.PendingNotifications = n
		return err
	})
	g.Go(func() error {
		n, err := s.queue.CountProcessedSince(gctx, now.Add(-24*time.Hour))
		stats.NotificationsLast24h = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read notification stats: %w", err)
	}
	return stats, nil
}

// IsAdmin reports whether userID has the admin flag. A missing user is not an admin.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, notification.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return user.IsAdmin, nil
}

func (s *Service) user(ctx context.Context, userID string) (*notification.User, error) {
	if userID == "" {
		return nil, status.Error(codes.NotFound, "User not found")
	}
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, notification.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return user, nil
}

// send dispatches and hands any unregistered tokens to the reconciler, even
// when the dispatch itself failed.
func (s *Service) send(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	result, err := s.dispatcher.Send(ctx, msg)
	s.reconcile(ctx, result)
	return result, err
}

func (s *Service) reconcile(ctx context.Context, result *notification.DeliveryResult) {
	stale := result.Unregistered()
	if len(stale) == 0 {
		return
	}
	if err := s.reconciler.Reconcile(ctx, stale); err != nil {
		s.logger.Error("Failed to reconcile unregistered tokens", "count", len(stale), "err", err)
	}
}
