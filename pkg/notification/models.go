// Package notification contains the domain models shared by the dispatch
// workflows, the stores and the event sources.
package notification

import (
	"errors"
	"time"

	platform "github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

// Android notification channels registered by the mobile client.
const (
	ChannelAdmin = "admin_notifications"
	ChannelOrder = "order_notifications"
)

// CustomerTopic is the default topic every customer device subscribes to.
const CustomerTopic = "customers"

type TargetKind string

const (
	TargetToken  TargetKind = "token"
	TargetTokens TargetKind = "tokens"
	TargetTopic  TargetKind = "topic"
)

// Target is exactly one of a single token, a set of tokens or a topic.
type Target struct {
	Kind   TargetKind
	Token  string
	Tokens []string
	Topic  string
}

func ToToken(token string) Target { return Target{Kind: TargetToken, Token: token} }

func ToTokens(tokens []string) Target { return Target{Kind: TargetTokens, Tokens: tokens} }

func ToTopic(topic string) Target { return Target{Kind: TargetTopic, Topic: topic} }

// Message is constructed per dispatch and never persisted.
type Message struct {
	Content platform.NotificationContent
	Data    map[string]string
	Channel string
	Target  Target
}

// WithTarget returns a copy of the message addressed to t.
func (m Message) WithTarget(t Target) Message {
	m.Target = t
	return m
}

// FailureKind classifies a failed delivery.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureTransient    FailureKind = "transient"
	FailureUnregistered FailureKind = "unregistered"
)

// TokenOutcome is the result of delivering to one token (or topic).
type TokenOutcome struct {
	Token     string
	Success   bool
	MessageID string
	Error     string
	Failure   FailureKind
}

// DeliveryResult aggregates the outcomes of one Send.
type DeliveryResult struct {
	SuccessCount int
	FailureCount int
	Outcomes     []TokenOutcome
}

// Add records an outcome and updates the counters.
func (r *DeliveryResult) Add(o TokenOutcome) {
	if o.Success {
		r.SuccessCount++
	} else {
		r.FailureCount++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Unregistered lists the tokens the provider reported as no longer valid.
func (r *DeliveryResult) Unregistered() []string {
	if r == nil {
		return nil
	}
	var tokens []string
	for _, o := range r.Outcomes {
		if o.Failure == FailureUnregistered && o.Token != "" {
			tokens = append(tokens, o.Token)
		}
	}
	return tokens
}

// TokenRecord is a document in admin_tokens, keyed by owner id.
type TokenRecord struct {
	OwnerID   string    `firestore:"userId" json:"userId"`
	Token     string    `firestore:"token" json:"token"`
	IsActive  bool      `firestore:"isActive" json:"isActive"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// User is the subset of a users document this service reads.
type User struct {
	ID       string `firestore:"-" json:"id"`
	Email    string `firestore:"email,omitempty" json:"email,omitempty"`
	FCMToken string `firestore:"fcmToken,omitempty" json:"fcmToken,omitempty"`
	IsAdmin  bool   `firestore:"isAdmin" json:"isAdmin"`
}

// Order status values the customer is notified about.
const (
	StatusPending   = "Pending"
	StatusShipped   = "Shipped"
	StatusDelivered = "Delivered"
	StatusCancelled = "Cancelled"
)

// Order is the read-only view of an orders document.
type Order struct {
	ID          string           `firestore:"-" json:"orderId,omitempty"`
	UserID      string           `firestore:"userId" json:"userId"`
	UserEmail   string           `firestore:"userEmail" json:"userEmail"`
	TotalPrice  float64          `firestore:"totalPrice" json:"totalPrice"`
	Items       []map[string]any `firestore:"items" json:"items"`
	OrderStatus string           `firestore:"orderStatus" json:"orderStatus"`
}

// Summary is what the admin alert needs to know about an order.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID:       o.ID,
		CustomerEmail: o.UserEmail,
		Total:         o.TotalPrice,
		ItemCount:     len(o.Items),
		Status:        o.OrderStatus,
	}
}

// OrderSummary is an order reduced to the fields shown to admins.
type OrderSummary struct {
	OrderID       string
	CustomerEmail string
	Total         float64
	ItemCount     int
	Status        string
}

// StatusChange pairs the order document before and after an update.
type StatusChange struct {
	OrderID string
	Before  Order
	After   Order
}

// Queue target types.
const (
	QueueTargetIndividual = "individual"
	QueueTargetAllAdmins  = "all_admins"
)

// QueuePayload is the message embedded in a queue item.
type QueuePayload struct {
	Token string            `firestore:"token,omitempty" json:"token,omitempty"`
	Title string            `firestore:"title" json:"title"`
	Body  string            `firestore:"body" json:"body"`
	Data  map[string]string `firestore:"data,omitempty" json:"data,omitempty"`
}

// QueueItem is a document in notification_queue.
type QueueItem struct {
	ID          string       `firestore:"-" json:"id"`
	Payload     QueuePayload `firestore:"payload" json:"payload"`
	TargetType  string       `firestore:"targetType" json:"targetType"`
	Processing  bool         `firestore:"processing" json:"processing"`
	Processed   bool         `firestore:"processed" json:"processed"`
	Failed      bool         `firestore:"failed" json:"failed"`
	Error       string       `firestore:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time    `firestore:"createdAt" json:"createdAt"`
	ProcessedAt time.Time    `firestore:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	ActiveAdminTokens    int       `json:"activeAdminTokens"`
	PendingNotifications int       `json:"pendingNotifications"`
	NotificationsLast24h int       `json:"notificationsLast24h"`
	LastUpdated          time.Time `json:"lastUpdated"`
}
