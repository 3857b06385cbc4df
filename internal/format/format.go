// Package format maps domain events to push messages. Every function here is
// pure: time is passed in rather than read.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
	platform "github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

const (
	unknownCustomer = "Unknown Customer"
	currency        = "EGP"
)

// ShortID is the customer-facing order reference: the first 8 characters,
// upper-cased.
func ShortID(orderID string) string {
	if len(orderID) > 8 {
		orderID = orderID[:8]
	}
	return strings.ToUpper(orderID)
}

// NewOrder builds the admin alert for a freshly placed order.
func NewOrder(order notification.OrderSummary) notification.Message {
	email := order.CustomerEmail
	if email == "" {
		email = unknownCustomer
	}
	status := order.Status
	if status == "" {
		status = notification.StatusPending
	}
	total := strconv.FormatFloat(order.Total, 'f', 2, 64)
	items := strconv.Itoa(order.ItemCount)

	body := fmt.Sprintf("Order #%s\nCustomer: %s\nTotal: %s %s\nItems: %s",
		ShortID(order.OrderID), email, currency, total, items)

	return notification.Message{
		Content: platform.NotificationContent{
			Title: "🛒 New Order Received!",
			Body:  body,
		},
		Data: map[string]string{
			"type":          "admin",
			"action":        "new_order",
			"orderId":       order.OrderID,
			"customerEmail": email,
			"totalPrice":    strconv.FormatFloat(order.Total, 'f', -1, 64),
			"itemCount":     items,
			"orderStatus":   status,
		},
		Channel: notification.ChannelAdmin,
	}
}

// StatusChange builds the customer message for an order status update. ok is
// false for statuses the customer is not told about.
func StatusChange(orderID, status string) (msg notification.Message, ok bool) {
	short := ShortID(orderID)

	var title, body string
	switch status {
	case notification.StatusShipped:
		title = "🚚 Order Shipped"
		body = fmt.Sprintf("Your order #%s has been shipped and is on its way!", short)
	case notification.StatusDelivered:
		title = "✅ Order Delivered"
		body = fmt.Sprintf("Your order #%s has been delivered successfully!", short)
	case notification.StatusCancelled:
		title = "❌ Order Cancelled"
		body = fmt.Sprintf("Your order #%s has been cancelled.", short)
	default:
		return notification.Message{}, false
	}

	return notification.Message{
		Content: platform.NotificationContent{Title: title, Body: body},
		Data: map[string]string{
			"type":      "order",
			"action":    "view_order",
			"orderId":   orderID,
			"newStatus": status,
		},
		Channel: notification.ChannelOrder,
	}, true
}

// Manual builds an admin-panel message sent by sentBy.
func Manual(title, body, sentBy string, at time.Time) notification.Message {
	return notification.Message{
		Content: platform.NotificationContent{Title: title, Body: body},
		Data: map[string]string{
			"type":      "manual",
			"action":    "general",
			"timestamp": timestamp(at),
			"sentBy":    sentBy,
		},
		Channel: notification.ChannelAdmin,
	}
}

// Test builds a test message, filling in defaults for a blank title or body.
func Test(title, body string, broadcast bool, at time.Time) notification.Message {
	if title == "" {
		title = "🧪 Test Notification"
		if broadcast {
			title = "📢 Admin Broadcast Test"
		}
	}
	if body == "" {
		body = "This is a test notification sent from the admin panel."
		if broadcast {
			body = "This is a test broadcast to all administrators."
		}
	}
	return notification.Message{
		Content: platform.NotificationContent{Title: title, Body: body},
		Data: map[string]string{
			"type":      "test",
			"timestamp": timestamp(at),
		},
		Channel: notification.ChannelAdmin,
	}
}

// Customer builds a caller-supplied customer message.
func Customer(title, body string, data map[string]string, at time.Time) notification.Message {
	out := make(map[string]string, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["timestamp"] = timestamp(at)
	out["notificationType"] = "customer"

	return notification.Message{
		Content: platform.NotificationContent{Title: title, Body: body},
		Data:    out,
		Channel: notification.ChannelOrder,
	}
}

// Direct builds an admin message whose title and body came verbatim from the caller.
func Direct(title, body string, data map[string]string, at time.Time) notification.Message {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["timestamp"] = timestamp(at)

	return notification.Message{
		Content: platform.NotificationContent{Title: title, Body: body},
		Data:    out,
		Channel: notification.ChannelAdmin,
	}
}

// Queued rebuilds a message from a queue payload. Admin-typed payloads go to
// the admin channel.
func Queued(p notification.QueuePayload) notification.Message {
	channel := notification.ChannelOrder
	if p.Data["type"] == "admin" {
		channel = notification.ChannelAdmin
	}
	return notification.Message{
		Content: platform.NotificationContent{Title: p.Title, Body: p.Body},
		Data:    p.Data,
		Channel: channel,
	}
}

func timestamp(at time.Time) string {
	return at.UTC().Format(time.RFC3339)
}
