package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Webhook header names. The Razorpay names are used by both clients.
const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

// Event types the reconciliation engine acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
)

// Event is the normalized content of a webhook delivery.
type Event struct {
	ID        string
	Type      string
	OrderID   string
	PaymentID string
}

// Settles reports whether the event confirms a successful payment.
func (e Event) Settles() bool {
	return e.Type == EventPaymentCaptured || e.Type == EventOrderPaid
}

type envelope struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseEvent decodes a webhook body. The event id comes from the
// EventIDHeader when present and the body's "id" otherwise.
func ParseEvent(body []byte, headers http.Header) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrInvalidPayload
	}
	ev := &Event{
		ID:   strings.TrimSpace(headers.Get(EventIDHeader)),
		Type: strings.TrimSpace(env.Event),
	}
	if ev.ID == "" {
		ev.ID = strings.TrimSpace(env.ID)
	}
	if ev.Type == "" {
		return nil, ErrInvalidPayload
	}
	if p := env.Payload.Payment; p != nil {
		ev.PaymentID = strings.TrimSpace(p.Entity.ID)
		ev.OrderID = strings.TrimSpace(p.Entity.OrderID)
	}
	if o := env.Payload.Order; o != nil && ev.OrderID == "" {
		ev.OrderID = strings.TrimSpace(o.Entity.ID)
	}
	return ev, nil
}
