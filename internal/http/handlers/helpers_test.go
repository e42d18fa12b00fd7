package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/gateway"
	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/repo"
	"github.com/tbourn/go-lms-backend/internal/services"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

// ---------- test DB + wiring ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	auth     *services.AuthService
	doubts   *services.DoubtService
	payments *services.PaymentService
	r        *gin.Engine
}

// newTestEnv wires real services over an in-memory store behind a router
// laid out like the production one, minus rate limiting and metrics.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	auth := services.NewAuthService(db, "test-secret", "lms-test", time.Hour)
	auth.BcryptCost = bcrypt.MinCost
	doubts := services.NewDoubtService(db, services.NopPublisher{}, services.DefaultDoubtLimits())
	sandbox, err := gateway.NewSandbox(1, "key_test")
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	payments := services.NewPaymentService(db, sandbox, testKeySecret, testWebhookSecret)

	h := New(auth, doubts, payments, Options{Provider: gateway.ProviderSandbox})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ContextLogger())
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/payment/webhook/:provider", h.PaymentWebhook)

	api := r.Group("", middleware.Auth(auth), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	api.GET("/auth/me", h.Me)
	api.POST("/doubts", h.CreateDoubt)
	api.GET("/doubts", h.ListDoubts)
	api.GET("/doubts/:id", h.GetDoubt)
	api.GET("/doubts/:id/similar", h.SimilarDoubts)
	api.POST("/doubts/:id/messages", h.PostDoubtMessage)
	api.PUT("/doubts/:id/status", h.UpdateDoubtStatus)
	api.PUT("/doubts/:id/assign", h.AssignDoubt)
	api.DELETE("/doubts/:id", h.DeleteDoubt)
	api.DELETE("/doubts/messages/:messageId", h.DeleteDoubtMessage)
	api.POST("/courses/:id/enroll", h.EnrollFree)
	api.POST("/payment/create-order", h.CreateOrder)
	api.POST("/payment/verify", h.VerifyPayment)

	return &testEnv{db: db, auth: auth, doubts: doubts, payments: payments, r: r}
}

// user seeds an account and returns a bearer token for it.
func (e *testEnv) user(t *testing.T, name string, role domain.Role) (uint, string) {
	t.Helper()
	u := &domain.User{Name: name, Email: name + "@lms.test", PasswordHash: "x", Role: role, Status: domain.UserActive}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, _, err := e.auth.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u.ID, tok
}

func (e *testEnv) course(t *testing.T, price int64, published bool) *domain.Course {
	t.Helper()
	c := &domain.Course{Title: "Go 101", Price: price, Currency: "INR", IsPublished: published}
	if err := e.db.Create(c).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

// do performs a request; body is JSON-encoded unless it is a []byte.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, want, w.Body.String())
	}
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	expectStatus(t, w, status)
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q; want %q (body=%s)", er.Code, code, w.Body.String())
	}
	if er.RequestID == "" {
		t.Fatalf("missing request_id in %s", w.Body.String())
	}
	return er
}
