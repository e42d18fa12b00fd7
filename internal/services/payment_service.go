// Package services – PaymentService
//
// This file implements payment-to-enrollment reconciliation. An order is
// created on the gateway and mirrored locally as PENDING. It is settled
// through either of two ingress paths, the client's verify call or the
// gateway webhook, which share a single settle routine:
//
//  1. conditional update PENDING -> COMPLETED keyed by gateway order id
//  2. enrollment insert with ON CONFLICT DO NOTHING, in the same transaction
//
// The conditional update is the only arbiter between concurrent settlements;
// no application lock is taken. A settlement that finds the order already
// COMPLETED succeeds when the enrollment exists.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/gateway"
	"github.com/tbourn/go-lms-backend/internal/repo"
)

// PaymentMetrics receives settlement outcomes. observability.Metrics
// implements it.
type PaymentMetrics interface {
	Settlement(source, outcome string)
	WebhookEvent(provider, eventType, outcome string)
}

type nopPaymentMetrics struct{}

func (nopPaymentMetrics) Settlement(string, string)           {}
func (nopPaymentMetrics) WebhookEvent(string, string, string) {}

// PaymentService creates orders and settles them into enrollments.
type PaymentService struct {
	DB      *gorm.DB
	Gateway gateway.Client

	// KeySecret signs client payment proofs; WebhookSecret signs webhook
	// bodies. They must differ.
	KeySecret     string
	WebhookSecret string

	// Currency is charged for courses that do not carry their own.
	Currency string

	Metrics PaymentMetrics
	Now     func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, gw gateway.Client, keySecret, webhookSecret string) *PaymentService {
	return &PaymentService{
		DB:            db,
		Gateway:       gw,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		Currency:      "INR",
		Metrics:       nopPaymentMetrics{},
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// CheckoutOrder is what the client needs to open the gateway checkout.
type CheckoutOrder struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// VerifyInput is the client's settlement confirmation.
type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
	CourseID  uint
}

// Settlement source labels for metrics and logs.
const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

func (s *PaymentService) tracer() trace.Tracer { return otel.Tracer("services/PaymentService") }

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *PaymentService) metrics() PaymentMetrics {
	if s.Metrics == nil {
		return nopPaymentMetrics{}
	}
	return s.Metrics
}

// CreateOrder opens a gateway order for a published, priced course the actor
// is not enrolled in, and records it locally as PENDING. The gateway is
// called first; if the local insert then fails, the gateway order is left
// orphaned and never settles.
func (s *PaymentService) CreateOrder(ctx context.Context, actor Actor, courseID uint) (*CheckoutOrder, error) {
	ctx, span := s.tracer().Start(ctx, "CreateOrder",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(actor.ID)),
			attribute.Int64("course.id", int64(courseID)),
		),
	)
	defer span.End()

	course, err := repo.GetCourse(ctx, s.DB, courseID)
	if err != nil {
		return nil, mapNotFound(err, ErrCourseNotFound)
	}
	if !course.Purchasable() {
		return nil, ErrCourseNotPurchasable
	}
	enrolled, err := repo.IsEnrolled(ctx, s.DB, actor.ID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	currency := course.Currency
	if currency == "" {
		currency = s.Currency
	}
	receipt := "u" + strconv.FormatUint(uint64(actor.ID), 10) + "-c" + strconv.FormatUint(uint64(courseID), 10) +
		"-" + strconv.FormatInt(s.now().Unix(), 10)
	gwOrder, err := s.Gateway.CreateOrder(ctx, course.Price, currency, receipt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway create order")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	o := &domain.PaymentOrder{
		GatewayOrderID: gwOrder.ID,
		UserID:         actor.ID,
		CourseID:       courseID,
		Amount:         course.Price,
		Currency:       currency,
		Status:         domain.OrderPending,
	}
	if err := repo.CreateOrder(ctx, s.DB, o); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("gateway_order_id", gwOrder.ID).
			Msg("payment order persisted on gateway only")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.GatewayOrderID))

	return &CheckoutOrder{
		OrderID:  o.GatewayOrderID,
		Amount:   o.Amount,
		Currency: o.Currency,
		KeyID:    s.Gateway.KeyID(),
	}, nil
}

// EnrollFree enrolls the actor in a published course priced at zero.
// Repeating the call returns the existing enrollment.
func (s *PaymentService) EnrollFree(ctx context.Context, actor Actor, courseID uint) (*domain.Enrollment, error) {
	ctx, span := s.tracer().Start(ctx, "EnrollFree",
		trace.WithAttributes(attribute.Int64("course.id", int64(courseID))),
	)
	defer span.End()

	course, err := repo.GetCourse(ctx, s.DB, courseID)
	if err != nil {
		return nil, mapNotFound(err, ErrCourseNotFound)
	}
	if !course.IsPublished || course.Price != 0 {
		return nil, ErrCourseNotPurchasable
	}
	return repo.EnsureEnrollment(ctx, s.DB, actor.ID, courseID, s.now())
}

// Verify checks the client's payment proof and settles the order. A proof
// that does not match marks the actor's PENDING order FAILED and returns
// ErrInvalidSignature; the order can then never be promoted.
func (s *PaymentService) Verify(ctx context.Context, actor Actor, in VerifyInput) (*domain.Enrollment, error) {
	ctx, span := s.tracer().Start(ctx, "Verify",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID),
			attribute.Int64("user.id", int64(actor.ID)),
		),
	)
	defer span.End()

	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	verr := &ValidationError{}
	if in.OrderID == "" {
		verr.add("razorpay_order_id", "is required")
	}
	if in.PaymentID == "" {
		verr.add("razorpay_payment_id", "is required")
	}
	if strings.TrimSpace(in.Signature) == "" {
		verr.add("razorpay_signature", "is required")
	}
	if in.CourseID == 0 {
		verr.add("courseId", "is required")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	if !gateway.VerifyPayment(s.KeySecret, in.OrderID, in.PaymentID, in.Signature) {
		if _, err := repo.FailPendingOrder(ctx, s.DB, in.OrderID, repo.OrderMatch{UserID: actor.ID}); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("gateway_order_id", in.OrderID).Msg("mark order failed")
		}
		s.metrics().Settlement(SourceClient, "invalid_signature")
		span.SetStatus(codes.Error, "invalid signature")
		return nil, ErrInvalidSignature
	}

	e, promoted, err := s.settle(ctx, in.OrderID, in.PaymentID, in.Signature, repo.OrderMatch{UserID: actor.ID, CourseID: in.CourseID})
	s.metrics().Settlement(SourceClient, outcome(promoted, err))
	return e, err
}

// settle promotes the order and creates the enrollment exactly once. m
// restricts which order may be promoted; the webhook path passes a zero
// match. promoted is false when the order had already been settled.
func (s *PaymentService) settle(ctx context.Context, orderID, paymentID, signature string, m repo.OrderMatch) (out *domain.Enrollment, promoted bool, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, p, err := settleTx(ctx, tx, orderID, paymentID, signature, m, s.now())
		out, promoted = e, p
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, promoted, nil
}

func settleTx(ctx context.Context, tx *gorm.DB, orderID, paymentID, signature string, m repo.OrderMatch, now time.Time) (*domain.Enrollment, bool, error) {
	n, err := repo.CompletePendingOrder(ctx, tx, orderID, paymentID, signature, m, now)
	if err != nil {
		return nil, false, err
	}

	o, err := repo.GetOrderByGatewayID(ctx, tx, orderID)
	if err != nil {
		return nil, false, mapNotFound(err, ErrOrderNotFound)
	}
	if (m.UserID != 0 && o.UserID != m.UserID) || (m.CourseID != 0 && o.CourseID != m.CourseID) {
		return nil, false, ErrOrderNotFound
	}

	if n == 1 {
		e, err := repo.EnsureEnrollment(ctx, tx, o.UserID, o.CourseID, now)
		return e, err == nil, err
	}

	// Lost the race or replayed: success only if an enrollment exists.
	e, err := repo.GetEnrollment(ctx, tx, o.UserID, o.CourseID)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, ErrOrderAlreadyProcessed
}

// WebhookResult summarizes how a webhook delivery was handled.
type WebhookResult struct {
	EventID string
	Type    string
	OrderID string
	Action  string // settled|already_settled|failed|ignored
}

// HandleWebhook authenticates a gateway delivery by the HMAC of its raw body,
// de-duplicates it by event id and applies it:
//
//   - payment.captured / order.paid settle the order
//   - payment.failed moves a PENDING order to FAILED
//   - anything else is acknowledged and ignored
//
// A redelivered event yields ErrEventAlreadyProcessed. An order the store does
// not know yet yields ErrOrderNotFound and the event is not recorded, so the
// gateway's retry is processed.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider string, body []byte, signature string, ev *gateway.Event) (*WebhookResult, error) {
	ctx, span := s.tracer().Start(ctx, "HandleWebhook",
		trace.WithAttributes(attribute.String("provider", provider)),
	)
	defer span.End()

	if !gateway.VerifyBody(s.WebhookSecret, body, signature) {
		s.metrics().WebhookEvent(provider, "unknown", "invalid_signature")
		return nil, ErrInvalidSignature
	}
	if ev == nil {
		return nil, invalid("body", "unrecognized webhook payload")
	}
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
		attribute.String("order.id", ev.OrderID),
	)

	res := &WebhookResult{EventID: ev.ID, Type: ev.Type, OrderID: ev.OrderID, Action: "ignored"}
	log := zerolog.Ctx(ctx).With().
		Str("provider", provider).
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("gateway_order_id", ev.OrderID).
		Logger()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := repo.RecordWebhookEvent(ctx, tx, provider, ev.ID, ev.Type, ev.OrderID)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrEventAlreadyProcessed
			}
			return err
		}

		switch {
		case ev.Settles():
			if ev.OrderID == "" {
				return invalid("order_id", "is required")
			}
			_, promoted, err := settleTx(ctx, tx, ev.OrderID, ev.PaymentID, "", repo.OrderMatch{}, s.now())
			switch {
			case errors.Is(err, ErrOrderAlreadyProcessed):
				// FAILED orders are never promoted; acknowledge so the gateway stops retrying.
				log.Warn().Msg("capture received for an order that is no longer pending")
			case err != nil:
				return err
			case promoted:
				res.Action = "settled"
			default:
				res.Action = "already_settled"
			}
		case ev.Type == gateway.EventPaymentFailed:
			if ev.OrderID != "" {
				n, err := repo.FailPendingOrder(ctx, tx, ev.OrderID, repo.OrderMatch{})
				if err != nil {
					return err
				}
				if n > 0 {
					res.Action = "failed"
				}
			}
		}
		return repo.MarkWebhookProcessed(ctx, tx, rec.ID, s.now())
	})

	s.metrics().WebhookEvent(provider, ev.Type, webhookOutcome(res.Action, err))
	if err != nil {
		if !errors.Is(err, ErrEventAlreadyProcessed) {
			log.Error().Err(err).Msg("webhook not applied")
		}
		return nil, err
	}
	if res.Action == "settled" || res.Action == "already_settled" {
		s.metrics().Settlement(SourceWebhook, res.Action)
	}
	log.Info().Str("action", res.Action).Msg("webhook applied")
	return res, nil
}

// SweepStaleOrders fails PENDING orders created more than olderThan ago and
// returns how many were swept.
func (s *PaymentService) SweepStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "SweepStaleOrders")
	defer span.End()

	n, err := repo.FailStaleOrders(ctx, s.DB, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("orders.swept", n))
	return n, nil
}

// RunSweeper calls SweepStaleOrders every interval until ctx is done.
func (s *PaymentService) RunSweeper(ctx context.Context, interval, olderThan time.Duration) {
	log := zerolog.Ctx(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.SweepStaleOrders(ctx, olderThan)
			if err != nil {
				log.Error().Err(err).Msg("sweep stale payment orders")
				continue
			}
			if n > 0 {
				log.Info().Int64("orders", n).Msg("stale payment orders marked failed")
			}
		}
	}
}

func outcome(promoted bool, err error) string {
	switch {
	case err == nil && promoted:
		return "settled"
	case err == nil:
		return "already_settled"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrOrderAlreadyProcessed):
		return "already_processed"
	default:
		return "error"
	}
}

func webhookOutcome(action string, err error) string {
	switch {
	case err == nil:
		return action
	case errors.Is(err, ErrEventAlreadyProcessed):
		return "duplicate"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	default:
		return "error"
	}
}
