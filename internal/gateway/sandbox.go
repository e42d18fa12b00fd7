package gateway

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Sandbox is an in-process gateway. Orders are accepted immediately and given
// snowflake ids; payments are simulated by signing (orderID, paymentID) with
// the same secret the reconciliation engine verifies with.
type Sandbox struct {
	node  *snowflake.Node
	keyID string
}

// NewSandbox returns a sandbox gateway using snowflake node nodeID.
func NewSandbox(nodeID int64, keyID string) (*Sandbox, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	if keyID == "" {
		keyID = "sandbox_key"
	}
	return &Sandbox{node: node, keyID: keyID}, nil
}

func (s *Sandbox) Provider() string { return ProviderSandbox }
func (s *Sandbox) KeyID() string    { return s.keyID }

// CreateOrder mints an order id locally.
func (s *Sandbox) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*Order, error) {
	return &Order{
		ID:       "order_" + s.node.Generate().Base58(),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

// NewPaymentID mints a payment id for simulated checkouts.
func (s *Sandbox) NewPaymentID() string {
	return "pay_" + s.node.Generate().Base58()
}
