package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Razorpay is a Client for the Razorpay-compatible orders API.
type Razorpay struct {
	BaseURL   string
	keyID     string
	keySecret string
	HTTP      *http.Client
}

// NewRazorpay returns a client authenticating with (keyID, keySecret).
func NewRazorpay(baseURL, keyID, keySecret string) *Razorpay {
	return &Razorpay{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Razorpay) Provider() string { return ProviderRazorpay }
func (r *Razorpay) KeyID() string    { return r.keyID }

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// CreateOrder calls POST /v1/orders.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrUpstream, err)
	}
	if o.ID == "" {
		return nil, fmt.Errorf("%w: order id missing", ErrUpstream)
	}
	return &o, nil
}
