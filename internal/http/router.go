// Package httpapi wires the HTTP transport (Gin) to the LMS services,
// middleware and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency and rate
// limiting, and mounts the WebSocket endpoint next to the REST API.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/docs"
	"github.com/tbourn/go-lms-backend/internal/config"
	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/gateway"
	"github.com/tbourn/go-lms-backend/internal/http/handlers"
	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/repo"
	"github.com/tbourn/go-lms-backend/internal/services"
)

// WebSocketPath is where the real-time channel is served.
const WebSocketPath = "/ws"

// Deps are the already constructed application services.
type Deps struct {
	DB       *gorm.DB
	Auth     *services.AuthService
	Doubts   *services.DoubtService
	Payments *services.PaymentService

	// Realtime serves WebSocket upgrades; nil leaves WebSocketPath unmounted.
	Realtime http.Handler

	// Provider is the payment gateway whose webhooks are accepted.
	Provider string
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + ContextLogger: correlation id and request-scoped logger
//  3. RedactingLogger: access log with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Compression (never on the socket or the scrape endpoint)
//  8. CORS and security headers
//
// Authentication, idempotency and per-user rate limiting run on the
// authenticated group only, in that order, so the limiter can key on the
// user and let replays through.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID(), middleware.ContextLogger())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{gateway.SignatureHeader},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{WebSocketPath, "/metrics"})))

	// 8) CORS posture (allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		// Listed origins may send the access_token cookie.
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(deps.DB))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Realtime != nil {
		r.GET(WebSocketPath, gin.WrapH(deps.Realtime))
	}

	h := handlers.New(deps.Auth, deps.Doubts, deps.Payments, handlers.Options{
		Provider:     deps.Provider,
		SecureCookie: cfg.Security.EnableHSTS,
	})

	ipLimiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	userLimiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Public: credentials never cached, brute force bounded per IP.
	public := api.Group("/auth", middleware.NoStore(), ipLimiter.Handler())
	{
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
	}

	// Gateway callbacks authenticate by body signature and must never be
	// throttled into a retry storm.
	api.POST("/payment/webhook/:provider", h.PaymentWebhook)

	authed := api.Group("",
		middleware.Auth(deps.Auth),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  doubtMessageScope,
		}, idempotencyLookup(deps.DB)),
		userLimiter.Handler(),
	)
	{
		authed.GET("/auth/me", middleware.NoStore(), h.Me)

		// Doubts
		authed.POST("/doubts", h.CreateDoubt)
		authed.GET("/doubts", h.ListDoubts)
		authed.GET("/doubts/:id", h.GetDoubt)
		authed.GET("/doubts/:id/similar", h.SimilarDoubts)
		authed.POST("/doubts/:id/messages", h.PostDoubtMessage)
		authed.PUT("/doubts/:id/status", middleware.RequireRole(domain.RoleInstructor, domain.RoleAdmin), h.UpdateDoubtStatus)
		authed.PUT("/doubts/:id/assign", middleware.RequireRole(domain.RoleAdmin), h.AssignDoubt)
		authed.DELETE("/doubts/:id", h.DeleteDoubt)
		authed.DELETE("/doubts/messages/:messageId", middleware.RequireRole(domain.RoleAdmin), h.DeleteDoubtMessage)

		// Checkout
		authed.POST("/courses/:id/enroll", h.EnrollFree)
		authed.POST("/payment/create-order", h.CreateOrder)
		authed.POST("/payment/verify", h.VerifyPayment)
	}
}

// doubtMessageScope names the idempotency scope of a message post; other
// requests carry no scope and are never treated as replays.
func doubtMessageScope(c *gin.Context) string {
	if c.Request.Method != http.MethodPost || !strings.HasSuffix(c.FullPath(), "/doubts/:id/messages") {
		return ""
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return ""
	}
	return "doubt:" + strconv.FormatUint(id, 10) + ":messages"
}

func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID uint, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, repo.IdempotencyKey{UserID: userID, Scope: scope, Key: key}, now)
		return err == nil, nil
	}
}

// readiness reports 503 while the database does not answer a ping.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness: database unavailable")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
