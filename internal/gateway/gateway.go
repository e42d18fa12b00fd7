// Package gateway talks to the external payment gateway: creating orders,
// computing and checking payment proofs, and parsing webhook envelopes.
//
// Two clients are provided. Razorpay speaks the Razorpay-compatible REST API;
// Sandbox mints order ids locally for development and tests.
package gateway

import (
	"context"
	"errors"
)

// Provider names accepted in configuration and webhook routes.
const (
	ProviderRazorpay = "razorpay"
	ProviderSandbox  = "sandbox"
)

var (
	// ErrInvalidSignature is returned when a proof or envelope HMAC does not match.
	ErrInvalidSignature = errors.New("gateway: invalid signature")
	// ErrInvalidPayload is returned for webhook bodies that cannot be parsed.
	ErrInvalidPayload = errors.New("gateway: invalid payload")
	// ErrUpstream is returned when the gateway API rejects or fails a call.
	ErrUpstream = errors.New("gateway: upstream error")
)

// Order is a gateway-side payment intent.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Client creates payment intents on a gateway.
type Client interface {
	// Provider is the gateway name, e.g. "razorpay".
	Provider() string
	// KeyID is the public key the browser checkout needs.
	KeyID() string
	// CreateOrder registers a payment intent for amount minor units.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
}
