// Payment HTTP handlers.
//
// This file exposes the checkout flow:
//   - POST /payment/create-order       (PENDING order + gateway intent)
//   - POST /payment/verify             (client-side settlement confirmation)
//   - POST /payment/webhook/{provider} (gateway-signed asynchronous settlement)
//   - POST /courses/{id}/enroll        (free courses)
//
// Client verification and webhooks race for the same order; whichever arrives
// first settles it and the other observes the existing enrollment.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/gateway"
	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
)

//
// DTOs
//

// CreateOrderRequest is the JSON payload for opening a checkout.
type CreateOrderRequest struct {
	CourseID uint `json:"courseId" binding:"required,gt=0" example:"3"`
}

// VerifyPaymentRequest carries the checkout widget's success callback.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"   binding:"required" example:"order_NJf8H2xgYbQn3P"`
	PaymentID string `json:"razorpay_payment_id" binding:"required" example:"pay_NJf8Rk4dHmT0Zs"`
	Signature string `json:"razorpay_signature"  binding:"required" example:"9c1f0e...e4"`
	CourseID  uint   `json:"courseId"            binding:"required,gt=0" example:"3"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Status  string `json:"status"            example:"ok"`
	EventID string `json:"event_id,omitempty" example:"evt_29QQoUBi66xm2f"`
	Action  string `json:"action,omitempty"  example:"settled"`
}

//
// Handlers
//

// CreateOrder godoc
// @ID          createOrder
// @Summary     Open a checkout order
// @Description Creates a gateway order for a published, priced course and records it as PENDING.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateOrderRequest  true  "Course to buy"
// @Success     201   {object}  services.CheckoutOrder
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404   {object}  handlers.ErrorResponse  "Course not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Already enrolled or not purchasable"
// @Failure     502   {object}  handlers.ErrorResponse  "Payment gateway unavailable"
// @Router      /payment/create-order [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.paymentSvc.CreateOrder(c.Request.Context(), actor, req.CourseID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// VerifyPayment godoc
// @ID          verifyPayment
// @Summary     Confirm a payment
// @Description Checks the payment signature and enrolls the caller exactly once.
// @Description Verifying an order that is already settled for the caller succeeds with the existing enrollment.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.VerifyPaymentRequest  true  "Checkout callback"
// @Success     200   {object}  domain.Enrollment
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403   {object}  handlers.ErrorResponse  "Invalid signature"
// @Failure     404   {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Order already processed"
// @Router      /payment/verify [post]
func (h *Handlers) VerifyPayment(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	var req VerifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.paymentSvc.Verify(c.Request.Context(), actor, services.VerifyInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		CourseID:  req.CourseID,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// EnrollFree godoc
// @ID          enrollFree
// @Summary     Enroll in a free course
// @Description Repeating the call returns the existing enrollment.
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  int  true  "Course ID"
// @Success     200  {object} domain.Enrollment
// @Failure     404  {object} handlers.ErrorResponse "Course not found"
// @Failure     409  {object} handlers.ErrorResponse "Course is not free"
// @Router      /courses/{id}/enroll [post]
func (h *Handlers) EnrollFree(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	e, err := h.paymentSvc.EnrollFree(c.Request.Context(), actor, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Gateway webhook
// @Description Authenticated by the HMAC-SHA256 of the raw body in X-Razorpay-Signature.
// @Description Redelivered events are acknowledged with 200. An order that is not known yet
// @Description answers 404 so the gateway retries later.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       provider              path    string  true   "Gateway name"  example(razorpay)
// @Param       X-Razorpay-Signature  header  string  true   "Hex HMAC-SHA256 of the body"
// @Param       X-Razorpay-Event-Id   header  string  false  "Delivery id used for de-duplication"
// @Success     200  {object} handlers.WebhookResponse
// @Failure     400  {object} handlers.ErrorResponse "Unrecognized payload"
// @Failure     401  {object} handlers.ErrorResponse "Invalid signature"
// @Failure     404  {object} handlers.ErrorResponse "Unknown provider or order"
// @Router      /payment/webhook/{provider} [post]
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")
	if provider != h.opts.Provider {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown payment provider")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	// A body that does not parse is still authenticated first; the service
	// rejects a nil event only after the signature matched.
	ev, _ := gateway.ParseEvent(body, c.Request.Header)

	res, err := h.paymentSvc.HandleWebhook(c.Request.Context(), provider, body, c.GetHeader(gateway.SignatureHeader), ev)
	switch {
	case err == nil:
		ok(c, http.StatusOK, WebhookResponse{Status: "ok", EventID: res.EventID, Action: res.Action})
	case errors.Is(err, services.ErrEventAlreadyProcessed):
		ok(c, http.StatusOK, WebhookResponse{Status: "duplicate", EventID: ev.ID})
	case errors.Is(err, services.ErrInvalidSignature):
		// The envelope is unauthenticated, unlike a forged client proof.
		c.Header("WWW-Authenticate", `HMAC realm="webhook"`)
		fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "invalid webhook signature")
	default:
		if errors.Is(err, services.ErrOrderNotFound) {
			middleware.LoggerFrom(c).Warn().Str("gateway_order_id", ev.OrderID).Msg("webhook for unknown order; gateway will retry")
		}
		failErr(c, err)
	}
}
