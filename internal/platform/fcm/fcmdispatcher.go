package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// MulticastLimit is the FCM ceiling on tokens per multicast request.
const MulticastLimit = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it, and also MulticastClient.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// MulticastClient is implemented by clients that can deliver one message to
// many tokens in a single call.
type MulticastClient interface {
	MessagingClient
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Metrics counts delivery outcomes by target kind.
type Metrics struct {
	Deliveries *prometheus.CounterVec
}

// NewMetrics creates the delivery counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bubbles_push_deliveries_total",
				Help: "Push deliveries by target kind and outcome",
			},
			[]string{"target", "outcome"},
		),
	}
	reg.MustRegister(m.Deliveries)
	return m
}

func (m *Metrics) observe(kind notification.TargetKind, o notification.TokenOutcome) {
	if m == nil {
		return
	}
	outcome := "success"
	if !o.Success {
		outcome = string(o.Failure)
	}
	m.Deliveries.WithLabelValues(string(kind), outcome).Inc()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records every outcome on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClassifier replaces the provider error classification.
func WithClassifier(fn func(error) notification.FailureKind) Option {
	return func(d *Dispatcher) { d.classify = fn }
}

// Dispatcher delivers notification messages through FCM.
type Dispatcher struct {
	client   MessagingClient
	classify func(error) notification.FailureKind
	metrics  *Metrics
	logger   *slog.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
func NewDispatcher(client MessagingClient, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:   client,
		classify: Classify,
		logger:   logger.With("component", "FCMDispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Classify marks token-registration errors as permanent. Everything else is
// transient.
func Classify(err error) notification.FailureKind {
	if err == nil {
		return notification.FailureNone
	}
	if messaging.IsUnregistered(err) {
		return notification.FailureUnregistered
	}
	return notification.FailureTransient
}

// Send delivers msg to its target.
func (d *Dispatcher) Send(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	switch msg.Target.Kind {
	case notification.TargetToken:
		if msg.Target.Token == "" {
			return nil, status.Error(codes.InvalidArgument, "empty token target")
		}
		return d.sendOne(ctx, msg, msg.Target.Token)
	case notification.TargetTopic:
		if msg.Target.Topic == "" {
			return nil, status.Error(codes.InvalidArgument, "empty topic target")
		}
		return d.sendOne(ctx, msg, "")
	case notification.TargetTokens:
		return d.sendMany(ctx, msg)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown target kind %q", msg.Target.Kind)
	}
}

func (d *Dispatcher) sendOne(ctx context.Context, msg notification.Message, token string) (*notification.DeliveryResult, error) {
	fm := buildMessage(msg)
	if token != "" {
		fm.Token = token
	} else {
		fm.Topic = msg.Target.Topic
	}

	result := &notification.DeliveryResult{}
	id, err := d.client.Send(ctx, fm)
	outcome := d.outcome(token, id, err)
	result.Add(outcome)
	d.metrics.observe(msg.Target.Kind, outcome)

	if outcome.Failure == notification.FailureTransient {
		d.logger.Warn("FCM send failed", "target", msg.Target.Kind, "err", err)
		return result, fmt.Errorf("fcm send failed: %w", err)
	}
	if outcome.Failure == notification.FailureUnregistered {
		d.logger.Info("FCM reported token unregistered", "token", redact(token))
	}
	return result, nil
}

func (d *Dispatcher) sendMany(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	tokens := nonEmpty(msg.Target.Tokens)
	result := &notification.DeliveryResult{}
	if len(tokens) == 0 {
		return result, nil
	}

	mc, ok := d.client.(MulticastClient)
	if !ok {
		for _, token := range tokens {
			fm := buildMessage(msg)
			fm.Token = token
			id, err := d.client.Send(ctx, fm)
			outcome := d.outcome(token, id, err)
			result.Add(outcome)
			d.metrics.observe(msg.Target.Kind, outcome)
		}
		d.logResult(result)
		return result, nil
	}

	for start := 0; start < len(tokens); start += MulticastLimit {
		end := min(start+MulticastLimit, len(tokens))
		chunk := tokens[start:end]

		br, err := mc.SendEachForMulticast(ctx, buildMulticast(msg, chunk))
		if err != nil {
			return result, fmt.Errorf("fcm multicast transport failed: %w", err)
		}
		for idx, resp := range br.Responses {
			if idx >= len(chunk) {
				break
			}
			var outcome notification.TokenOutcome
			if resp.Success {
				outcome = d.outcome(chunk[idx], resp.MessageID, nil)
			} else {
				outcome = d.outcome(chunk[idx], "", resp.Error)
			}
			result.Add(outcome)
			d.metrics.observe(msg.Target.Kind, outcome)
		}
	}
	d.logResult(result)
	return result, nil
}

func (d *Dispatcher) outcome(token, messageID string, err error) notification.TokenOutcome {
	if err == nil {
		return notification.TokenOutcome{Token: token, Success: true, MessageID: messageID}
	}
	return notification.TokenOutcome{
		Token:   token,
		Error:   err.Error(),
		Failure: d.classify(err),
	}
}

func (d *Dispatcher) logResult(result *notification.DeliveryResult) {
	d.logger.Info("FCM batch delivered",
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"unregistered", len(result.Unregistered()))
}

func buildMessage(msg notification.Message) *messaging.Message {
	return &messaging.Message{
		Data:         msg.Data,
		Notification: &messaging.Notification{Title: msg.Content.Title, Body: msg.Content.Body},
		Android:      androidConfig(msg),
		APNS:         apnsConfig(msg),
	}
}

func buildMulticast(msg notification.Message, tokens []string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         msg.Data,
		Notification: &messaging.Notification{Title: msg.Content.Title, Body: msg.Content.Body},
		Android:      androidConfig(msg),
		APNS:         apnsConfig(msg),
	}
}

func androidConfig(msg notification.Message) *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			ChannelID: msg.Channel,
			Sound:     soundOf(msg),
			Icon:      "ic_launcher",
		},
	}
}

func apnsConfig(msg notification.Message) *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{Title: msg.Content.Title, Body: msg.Content.Body},
				Badge: &badge,
				Sound: soundOf(msg),
			},
		},
	}
}

func soundOf(msg notification.Message) string {
	if msg.Content.Sound != "" {
		return msg.Content.Sound
	}
	return "default"
}

func nonEmpty(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func redact(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
