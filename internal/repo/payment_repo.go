// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for payment orders
// and gateway webhook events.
//
// Order promotion is arbitrated by conditional updates only: a row moves out
// of PENDING at most once because every transition filters on
// status = 'PENDING' and reports the affected row count.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// CreateOrder inserts a PENDING order. A reused gateway order id yields
// ErrDuplicate.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.PaymentOrder) error {
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetOrderByGatewayID fetches an order by its gateway order id.
func GetOrderByGatewayID(ctx context.Context, db *gorm.DB, gatewayOrderID string) (*domain.PaymentOrder, error) {
	var o domain.PaymentOrder
	err := db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderMatch scopes a settlement to an owner. Zero fields are not matched.
type OrderMatch struct {
	UserID   uint
	CourseID uint
}

func (m OrderMatch) apply(q *gorm.DB) *gorm.DB {
	if m.UserID != 0 {
		q = q.Where("user_id = ?", m.UserID)
	}
	if m.CourseID != 0 {
		q = q.Where("course_id = ?", m.CourseID)
	}
	return q
}

// CompletePendingOrder promotes the PENDING order gatewayOrderID to COMPLETED,
// recording the payment id and signature. It returns the number of rows that
// changed; zero means the order is missing, owned by someone else or no
// longer PENDING.
func CompletePendingOrder(ctx context.Context, db *gorm.DB, gatewayOrderID, paymentID, signature string, m OrderMatch, at time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.PaymentOrder{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, domain.OrderPending)
	res := m.apply(q).Updates(map[string]any{
		"status":             domain.OrderCompleted,
		"gateway_payment_id": paymentID,
		"signature":          signature,
		"settled_at":         at.UTC(),
		"updated_at":         at.UTC(),
	})
	return res.RowsAffected, res.Error
}

// FailPendingOrder marks the PENDING order gatewayOrderID as FAILED.
func FailPendingOrder(ctx context.Context, db *gorm.DB, gatewayOrderID string, m OrderMatch) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.PaymentOrder{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, domain.OrderPending)
	res := m.apply(q).Updates(map[string]any{
		"status":     domain.OrderFailed,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}

// FailStaleOrders marks every PENDING order created before cutoff as FAILED
// and returns how many were swept.
func FailStaleOrders(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.PaymentOrder{}).
		Where("status = ? AND created_at < ?", domain.OrderPending, cutoff.UTC()).
		Updates(map[string]any{
			"status":     domain.OrderFailed,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// RecordWebhookEvent stores a received gateway event. A redelivery of the
// same (provider, eventID) yields ErrDuplicate. An empty eventID is replaced
// by a random one so the event is still recorded.
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, provider, eventID, eventType, gatewayOrderID string) (*domain.WebhookEvent, error) {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ev := &domain.WebhookEvent{
		Provider:       provider,
		EventID:        eventID,
		EventType:      eventType,
		GatewayOrderID: gatewayOrderID,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return ev, nil
}

// GetWebhookEvent fetches a recorded event by (provider, eventID).
func GetWebhookEvent(ctx context.Context, db *gorm.DB, provider, eventID string) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	err := db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// MarkWebhookProcessed stamps ProcessedAt on the event id.
func MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Update("processed_at", at.UTC()).Error
}
