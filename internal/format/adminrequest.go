package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// Shape names one accepted admin-notify payload layout.
type Shape string

const (
	ShapeDirect Shape = "direct"
	ShapeOrder  Shape = "order"
	ShapeNested Shape = "nested"
)

// SupportedShapes is reported back to callers whose payload matched nothing.
var SupportedShapes = []string{
	"1. {title, body, data}",
	"2. {orderId, orderData: {totalPrice, userEmail, items, orderStatus}}",
	"3. {data: {orderId, customerName, customerEmail, total, itemCount, orderData}}",
}

// ShapeError is returned when an admin-notify payload matches no supported shape.
type ShapeError struct {
	Keys   []string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Reason != "" && len(e.Keys) > 0 {
		return fmt.Sprintf("unable to parse order data: %s. Received keys: %s", e.Reason, strings.Join(e.Keys, ", "))
	}
	if e.Reason != "" {
		return fmt.Sprintf("unable to parse order data: %s", e.Reason)
	}
	return fmt.Sprintf("unable to parse order data. Received keys: %s", strings.Join(e.Keys, ", "))
}

// AdminRequest is one decoded admin-notify payload.
type AdminRequest interface {
	Shape() Shape
	Message(at time.Time) notification.Message
}

// DirectRequest carries a caller-authored title and body.
type DirectRequest struct {
	Title string            `json:"title" validate:"required"`
	Body  string            `json:"body" validate:"required"`
	Data  map[string]string `json:"-"`
}

func (DirectRequest) Shape() Shape { return ShapeDirect }

func (r DirectRequest) Message(at time.Time) notification.Message {
	return Direct(r.Title, r.Body, r.Data, at)
}

// OrderRequest announces an order by id, with its details inline or at the root.
type OrderRequest struct {
	Order notification.OrderSummary
}

func (OrderRequest) Shape() Shape { return ShapeOrder }

func (r OrderRequest) Message(_ time.Time) notification.Message {
	return NewOrder(r.Order)
}

// NestedRequest is the layout produced by the app's API notification client.
type NestedRequest struct {
	Order notification.OrderSummary
}

func (NestedRequest) Shape() Shape { return ShapeNested }

func (r NestedRequest) Message(_ time.Time) notification.Message {
	return NewOrder(r.Order)
}

// amount accepts a JSON number or a numeric string. An empty string is zero.
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	text := string(bytes.TrimSpace(b))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
		if text == "" {
			*a = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("%s is not a number", b)
	}
	*a = amount(f)
	return nil
}

// itemCount accepts an item array, a count, or a numeric string.
type itemCount int

func (c *itemCount) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = itemCount(len(items))
		return nil
	}
	var n amount
	if err := n.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("%s is neither an item list nor a count", b)
	}
	if float64(n) != math.Trunc(float64(n)) {
		return fmt.Errorf("%s is not a whole count", b)
	}
	*c = itemCount(n)
	return nil
}

// orderID accepts a string or a numeric id.
type orderID string

func (id *orderID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = orderID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = orderID(n.String())
		return nil
	}
	return fmt.Errorf("orderId %s must be a string or a number", b)
}

type orderFields struct {
	TotalPrice    *amount    `json:"totalPrice" validate:"omitempty,gte=0"`
	Total         *amount    `json:"total" validate:"omitempty,gte=0"`
	UserEmail     string     `json:"userEmail"`
	CustomerEmail string     `json:"customerEmail"`
	Items         *itemCount `json:"items" validate:"omitempty,gte=0"`
	ItemCount     *itemCount `json:"itemCount" validate:"omitempty,gte=0"`
	OrderStatus   string     `json:"orderStatus"`
}

func (d orderFields) empty() bool {
	return d.TotalPrice == nil && d.Total == nil && d.UserEmail == "" &&
		d.CustomerEmail == "" && d.Items == nil && d.ItemCount == nil && d.OrderStatus == ""
}

func (d orderFields) summary(id orderID) notification.OrderSummary {
	s := notification.OrderSummary{
		OrderID:       string(id),
		CustomerEmail: d.UserEmail,
		Status:        d.OrderStatus,
	}
	if s.CustomerEmail == "" {
		s.CustomerEmail = d.CustomerEmail
	}
	switch {
	case d.TotalPrice != nil:
		s.Total = float64(*d.TotalPrice)
	case d.Total != nil:
		s.Total = float64(*d.Total)
	}
	switch {
	case d.Items != nil:
		s.ItemCount = int(*d.Items)
	case d.ItemCount != nil:
		s.ItemCount = int(*d.ItemCount)
	}
	return s
}

// overlay fills fields missing from d with those in fallback.
func (d orderFields) overlay(fallback orderFields) orderFields {
	if d.TotalPrice == nil && d.Total == nil {
		d.TotalPrice, d.Total = fallback.TotalPrice, fallback.Total
	}
	if d.UserEmail == "" && d.CustomerEmail == "" {
		d.UserEmail, d.CustomerEmail = fallback.UserEmail, fallback.CustomerEmail
	}
	if d.Items == nil && d.ItemCount == nil {
		d.Items, d.ItemCount = fallback.Items, fallback.ItemCount
	}
	if d.OrderStatus == "" {
		d.OrderStatus = fallback.OrderStatus
	}
	return d
}

type directWire struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  json.RawMessage `json:"data"`
}

type orderWire struct {
	orderFields
	OrderID   orderID         `json:"orderId" validate:"required"`
	OrderData *orderFields    `json:"orderData"`
	Data      json.RawMessage `json:"data"`
}

type nestedWire struct {
	orderFields
	OrderID   orderID      `json:"orderId"`
	OrderData *orderFields `json:"orderData" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseAdminRequest decodes body into one of the supported shapes, tried in
// order direct, order, nested. A payload carrying only one of title and body
// is treated as direct and rejected for the missing field.
func ParseAdminRequest(body []byte) (AdminRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, &ShapeError{Reason: "body is not a JSON object"}
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var direct directWire
	directErr := json.Unmarshal(body, &direct)
	if directErr == nil && direct.Title != "" && direct.Body != "" {
		return parseDirect(direct, keys)
	}

	if _, ok := raw["orderId"]; ok {
		return parseOrder(body, keys)
	}

	if dataKeys := objectKeys(raw["data"]); dataKeys["orderData"] || dataKeys["orderId"] {
		return parseNested(raw["data"], keys)
	}

	_, hasTitle := raw["title"]
	_, hasBody := raw["body"]
	if hasTitle || hasBody {
		if directErr != nil {
			return nil, &ShapeError{Keys: keys, Reason: directErr.Error()}
		}
		return parseDirect(direct, keys)
	}

	return nil, &ShapeError{Keys: keys}
}

func parseDirect(w directWire, keys []string) (AdminRequest, error) {
	data, err := stringMap(w.Data)
	if err != nil {
		return nil, &ShapeError{Keys: keys, Reason: "data: " + err.Error()}
	}
	req := DirectRequest{Title: w.Title, Body: w.Body, Data: data}
	if err := checked(req, keys); err != nil {
		return nil, err
	}
	return req, nil
}

func parseOrder(body []byte, keys []string) (AdminRequest, error) {
	var w orderWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &ShapeError{Keys: keys, Reason: err.Error()}
	}
	if err := checked(&w, keys); err != nil {
		return nil, err
	}

	var inline orderFields
	if w.OrderData != nil {
		inline = *w.OrderData
	}
	if inline.empty() && isObject(w.Data) {
		if err := json.Unmarshal(w.Data, &inline); err != nil {
			return nil, &ShapeError{Keys: keys, Reason: "data: " + err.Error()}
		}
		if err := checked(&inline, keys); err != nil {
			return nil, err
		}
	}
	return OrderRequest{Order: inline.overlay(w.orderFields).summary(w.OrderID)}, nil
}

func parseNested(data json.RawMessage, keys []string) (AdminRequest, error) {
	var w nestedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &ShapeError{Keys: keys, Reason: "data: " + err.Error()}
	}
	if err := checked(&w, keys); err != nil {
		return nil, err
	}
	id := w.OrderID
	if id == "" {
		id = "unknown"
	}
	return NestedRequest{Order: w.OrderData.overlay(w.orderFields).summary(id)}, nil
}

// checked runs the struct's validate tags and reports the first violation.
func checked(v any, keys []string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ShapeError{Keys: keys, Reason: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &ShapeError{Keys: keys, Reason: fe.Field() + " is required"}
	case "gte":
		return &ShapeError{Keys: keys, Reason: fmt.Sprintf("%s must not be below %s", fe.Field(), fe.Param())}
	default:
		return &ShapeError{Keys: keys, Reason: fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())}
	}
}

func objectKeys(raw json.RawMessage) map[string]bool {
	if !isObject(raw) {
		return nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	out := make(map[string]bool, len(values))
	for k := range values {
		out[k] = true
	}
	return out
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// stringMap flattens a JSON object into FCM's string-only data map.
func stringMap(raw json.RawMessage) (map[string]string, error) {
	if !isObject(raw) {
		return map[string]string{}, nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		if string(bytes.TrimSpace(v)) == "null" {
			continue
		}
		out[k] = string(bytes.TrimSpace(v))
	}
	return out, nil
}

// StringMap converts arbitrary decoded JSON values into FCM data strings.
func StringMap(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		default:
			b, err := json.Marshal(t)
			if err != nil {
				out[k] = fmt.Sprint(t)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
