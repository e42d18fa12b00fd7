// Package handlers exposes the REST endpoints of the LMS core:
//   - /auth      (register, login, current identity)
//   - /doubts    (threads, messages, status, assignment, related questions)
//   - /payment   (checkout orders, client verification, gateway webhooks)
//   - /courses   (free-course enrollment)
//
// Handlers are transport-thin: they bind and validate input, call the
// application services with the authenticated actor, and translate results
// into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/gateway"
	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
	"github.com/tbourn/go-lms-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService issues and describes sessions.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Me(ctx context.Context, actor services.Actor) (*domain.PublicUser, error)
}

// DoubtService defines the doubt thread operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor ctx.
type DoubtService interface {
	Create(ctx context.Context, actor services.Actor, in services.CreateThreadInput) (*services.ThreadView, error)
	Get(ctx context.Context, actor services.Actor, threadID uint) (*services.ThreadView, error)
	List(ctx context.Context, actor services.Actor, q services.ListThreadsQuery, page, pageSize int) ([]services.ThreadView, int64, error)
	// ListStats returns the row count and newest update time for q; it is
	// the input of the listing ETag.
	ListStats(ctx context.Context, actor services.Actor, q services.ListThreadsQuery) (int64, *time.Time, error)
	// Version identifies the current state of one thread for its ETag.
	Version(ctx context.Context, threadID uint) (string, error)
	PostMessageOnce(ctx context.Context, actor services.Actor, threadID uint, content, key string) (*services.MessageView, bool, error)
	UpdateStatus(ctx context.Context, actor services.Actor, threadID uint, status string) (*services.ThreadView, error)
	AssignInstructor(ctx context.Context, actor services.Actor, threadID uint, instructorID *uint) (*services.ThreadView, error)
	DeleteThread(ctx context.Context, actor services.Actor, threadID uint) error
	DeleteMessage(ctx context.Context, actor services.Actor, messageID uint) error
	Similar(ctx context.Context, actor services.Actor, threadID uint, k int) ([]services.SimilarThread, error)
}

// PaymentService defines checkout and settlement operations.
type PaymentService interface {
	CreateOrder(ctx context.Context, actor services.Actor, courseID uint) (*services.CheckoutOrder, error)
	EnrollFree(ctx context.Context, actor services.Actor, courseID uint) (*domain.Enrollment, error)
	Verify(ctx context.Context, actor services.Actor, in services.VerifyInput) (*domain.Enrollment, error)
	HandleWebhook(ctx context.Context, provider string, body []byte, signature string, ev *gateway.Event) (*services.WebhookResult, error)
}

//
// Handler wiring
//

// Options tunes transport details that do not belong to the services.
type Options struct {
	// Provider is the name of the configured payment gateway; webhooks for
	// any other provider are rejected with 404.
	Provider string
	// SecureCookie marks the session cookie set on login as Secure.
	SecureCookie bool
	// MaxWebhookBytes bounds the raw webhook body (default 1 MiB).
	MaxWebhookBytes int64
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	authSvc    AuthService
	doubtSvc   DoubtService
	paymentSvc PaymentService
	opts       Options
}

// New constructs a Handlers bound to the given services.
func New(authSvc AuthService, doubtSvc DoubtService, paymentSvc PaymentService, opts Options) *Handlers {
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = 1 << 20
	}
	return &Handlers{authSvc: authSvc, doubtSvc: doubtSvc, paymentSvc: paymentSvc, opts: opts}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.BoundedInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}

// currentActor returns the authenticated actor. Routes are mounted behind
// middleware.Auth; a missing actor answers 401 rather than panicking.
func currentActor(c *gin.Context) (services.Actor, bool) {
	a, found := middleware.ActorFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return services.Actor{}, false
	}
	return a, true
}

// pathID parses a positive numeric path parameter. On failure it writes a
// validation error naming the parameter and returns false.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := parseID(c.Param(name))
	if err != nil {
		failValidation(c, []services.FieldError{{Field: name, Message: "must be a positive integer"}})
		return 0, false
	}
	return id, true
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, strconv.ErrRange
	}
	return uint(n), nil
}

// optionalQueryID parses an optional numeric query filter into dst. Invalid
// values are collected into fields.
func optionalQueryID(c *gin.Context, name string, dst **uint, fields *[]services.FieldError) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return
	}
	id, err := parseID(raw)
	if err != nil {
		*fields = append(*fields, services.FieldError{Field: name, Message: "must be a positive integer"})
		return
	}
	*dst = &id
}

// notModified sets the ETag and reports whether the request's If-None-Match
// already names it, in which case a 304 has been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
