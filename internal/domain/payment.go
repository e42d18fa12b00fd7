package domain

import "time"

// OrderStatus is the settlement state of a payment order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
)

// PaymentOrder links a gateway order to a (user, course) purchase. The only
// valid source state for promotion is PENDING; COMPLETED and FAILED are final.
//
// Fields:
//   - GatewayOrderID: externally visible order id; unique.
//   - Amount: minor currency units.
//   - GatewayPaymentID / Signature: recorded on settlement.
type PaymentOrder struct {
	ID               uint        `json:"id"                           gorm:"primaryKey;autoIncrement"`
	GatewayOrderID   string      `json:"gateway_order_id"             gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_gateway_order"`
	UserID           uint        `json:"user_id"                      gorm:"not null;index:idx_payment_user_course,priority:1"`
	CourseID         uint        `json:"course_id"                    gorm:"not null;index:idx_payment_user_course,priority:2"`
	Amount           int64       `json:"amount"                       gorm:"not null"`
	Currency         string      `json:"currency"                     gorm:"type:varchar(8);not null"`
	Status           OrderStatus `json:"status"                       gorm:"type:varchar(16);not null;default:'PENDING';index"`
	GatewayPaymentID *string     `json:"gateway_payment_id,omitempty" gorm:"type:varchar(64)"`
	Signature        *string     `json:"-"                            gorm:"type:varchar(128)"`
	SettledAt        *time.Time  `json:"settled_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"                   gorm:"index"`
	UpdatedAt        time.Time   `json:"updated_at"`

	User   User   `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Course Course `json:"-" gorm:"foreignKey:CourseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PaymentOrder.
func (PaymentOrder) TableName() string { return "payment_orders" }

// WebhookEvent records a gateway notification so redeliveries of the same
// event are recognized. (provider, event_id) is unique.
type WebhookEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	Provider       string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_provider_event,priority:1"`
	EventID        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_webhook_provider_event,priority:2"`
	EventType      string    `gorm:"type:varchar(64);not null"`
	GatewayOrderID string    `gorm:"type:varchar(64);index"`
	ReceivedAt     time.Time `gorm:"not null"`
	ProcessedAt    *time.Time
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
