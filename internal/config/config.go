// Package config provides application configuration loaded from environment
// variables (and an optional config file) with defaults and validation. It
// centralizes settings such as server timeouts, logging, database, auth,
// payment gateway, doubt limits, real-time channel and observability.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-lms-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the GORM dialector.
type DatabaseConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite path
	URL    string // Postgres DSN
}

// AuthConfig configures credential issuing and validation.
type AuthConfig struct {
	JWTSecret              string
	Issuer                 string
	TokenTTL               time.Duration
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// PaymentConfig configures the payment gateway and reconciliation.
type PaymentConfig struct {
	Provider      string // razorpay|sandbox
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	PendingTTL    time.Duration // PENDING orders older than this are swept to FAILED
	SweepInterval time.Duration
}

// DoubtConfig bounds user supplied doubt content.
type DoubtConfig struct {
	TitleMaxRunes       int
	DescriptionMaxRunes int
	MessageMaxRunes     int
	MaxTags             int
	TagMaxRunes         int
}

// RealtimeConfig configures the WebSocket channel.
type RealtimeConfig struct {
	AllowedOrigins  []string
	MaxMessageBytes int64
	PingInterval    time.Duration
	SendBuffer      int
	EventRPS        float64
	EventBurst      int
	RedisURL        string // optional; enables cross-instance fan-out
	RedisChannel    string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB DatabaseConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	Auth     AuthConfig
	Payment  PaymentConfig
	Doubt    DoubtConfig
	Realtime RealtimeConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables (and CONFIG_FILE when
// set), applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	v := newViper()
	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Port:              v.GetString("PORT"),
		ReadTimeout:       v.GetDuration("READ_TIMEOUT"),
		ReadHeaderTimeout: v.GetDuration("READ_HEADER_TIMEOUT"),
		WriteTimeout:      v.GetDuration("WRITE_TIMEOUT"),
		IdleTimeout:       v.GetDuration("IDLE_TIMEOUT"),
		MaxHeaderBytes:    v.GetInt("MAX_HEADER_BYTES"),
		GinMode:           strings.ToLower(v.GetString("GIN_MODE")),

		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		LogPretty:      v.GetBool("LOG_PRETTY"),
		SwaggerEnabled: v.GetBool("SWAGGER_ENABLED"),
		APIBasePath:    normalizeBasePath(v.GetString("API_BASE_PATH")),

		DB: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			Path:   v.GetString("DB_PATH"),
			URL:    v.GetString("DATABASE_URL"),
		},

		RateRPS:   v.GetFloat64("RATE_RPS"),
		RateBurst: v.GetInt("RATE_BURST"),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Security: SecurityConfig{
			EnableHSTS: v.GetBool("ENABLE_HSTS"),
			HSTSMaxAge: v.GetDuration("HSTS_MAX_AGE"),
		},

		IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),

		Auth: AuthConfig{
			JWTSecret:              v.GetString("AUTH_JWT_SECRET"),
			Issuer:                 v.GetString("AUTH_ISSUER"),
			TokenTTL:               v.GetDuration("AUTH_TOKEN_TTL"),
			BootstrapAdminEmail:    strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_EMAIL")),
			BootstrapAdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		},

		Payment: PaymentConfig{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString("PAYMENT_PROVIDER"))),
			BaseURL:       strings.TrimRight(v.GetString("PAYMENT_BASE_URL"), "/"),
			KeyID:         v.GetString("PAYMENT_KEY_ID"),
			KeySecret:     v.GetString("PAYMENT_KEY_SECRET"),
			WebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
			Currency:      strings.ToUpper(strings.TrimSpace(v.GetString("PAYMENT_CURRENCY"))),
			PendingTTL:    v.GetDuration("PAYMENT_PENDING_TTL"),
			SweepInterval: v.GetDuration("PAYMENT_SWEEP_INTERVAL"),
		},

		Doubt: DoubtConfig{
			TitleMaxRunes:       v.GetInt("DOUBT_TITLE_MAX_RUNES"),
			DescriptionMaxRunes: v.GetInt("DOUBT_DESCRIPTION_MAX_RUNES"),
			MessageMaxRunes:     v.GetInt("DOUBT_MESSAGE_MAX_RUNES"),
			MaxTags:             v.GetInt("DOUBT_MAX_TAGS"),
			TagMaxRunes:         v.GetInt("DOUBT_TAG_MAX_RUNES"),
		},

		Realtime: RealtimeConfig{
			AllowedOrigins:  splitCSV(v.GetString("WS_ALLOWED_ORIGINS")),
			MaxMessageBytes: v.GetInt64("WS_MAX_MESSAGE_BYTES"),
			PingInterval:    v.GetDuration("WS_PING_INTERVAL"),
			SendBuffer:      v.GetInt("WS_SEND_BUFFER"),
			EventRPS:        v.GetFloat64("WS_EVENT_RPS"),
			EventBurst:      v.GetInt("WS_EVENT_BURST"),
			RedisURL:        strings.TrimSpace(v.GetString("REDIS_URL")),
			RedisChannel:    v.GetString("REDIS_CHANNEL"),
		},

		OTEL: OTELConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			SampleRatio: v.GetFloat64("OTEL_TRACES_SAMPLER_ARG"),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return errors.New("AUTH_JWT_SECRET must be at least 16 characters")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return errors.New("AUTH_TOKEN_TTL must be > 0")
	}
	if cfg.Auth.BootstrapAdminEmail != "" && len(cfg.Auth.BootstrapAdminPassword) < 8 {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters")
	}
	switch cfg.Payment.Provider {
	case "sandbox":
	case "razorpay":
		if cfg.Payment.KeyID == "" || cfg.Payment.BaseURL == "" {
			return errors.New("PAYMENT_KEY_ID and PAYMENT_BASE_URL are required for razorpay")
		}
	default:
		return errors.New("PAYMENT_PROVIDER must be one of: razorpay, sandbox")
	}
	if cfg.Payment.KeySecret == "" || cfg.Payment.WebhookSecret == "" {
		return errors.New("PAYMENT_KEY_SECRET and PAYMENT_WEBHOOK_SECRET must not be empty")
	}
	if cfg.Payment.KeySecret == cfg.Payment.WebhookSecret {
		return errors.New("PAYMENT_WEBHOOK_SECRET must differ from PAYMENT_KEY_SECRET")
	}
	if len(cfg.Payment.Currency) != 3 {
		return errors.New("PAYMENT_CURRENCY must be a 3-letter code")
	}
	if cfg.Payment.PendingTTL <= 0 || cfg.Payment.SweepInterval <= 0 {
		return errors.New("PAYMENT_PENDING_TTL and PAYMENT_SWEEP_INTERVAL must be > 0")
	}
	if cfg.Doubt.TitleMaxRunes < 1 || cfg.Doubt.DescriptionMaxRunes < 1 || cfg.Doubt.MessageMaxRunes < 1 || cfg.Doubt.TagMaxRunes < 1 {
		return errors.New("DOUBT_*_MAX_RUNES must be >= 1")
	}
	if cfg.Doubt.MaxTags < 1 {
		return errors.New("DOUBT_MAX_TAGS must be >= 1")
	}
	if cfg.Realtime.MaxMessageBytes <= 0 || cfg.Realtime.SendBuffer < 1 || cfg.Realtime.PingInterval <= 0 {
		return errors.New("WS_MAX_MESSAGE_BYTES, WS_SEND_BUFFER and WS_PING_INTERVAL must be positive")
	}
	if cfg.Realtime.EventRPS <= 0 || cfg.Realtime.EventBurst < 1 {
		return errors.New("WS_EVENT_RPS must be > 0 and WS_EVENT_BURST >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// newViper returns a viper instance bound to the process environment with all
// defaults registered. Keys are the environment variable names.
func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	return v
}

var defaults = map[string]any{
	// Server
	"PORT":                "8080",
	"READ_TIMEOUT":        15 * time.Second,
	"READ_HEADER_TIMEOUT": 10 * time.Second,
	"WRITE_TIMEOUT":       20 * time.Second,
	"IDLE_TIMEOUT":        60 * time.Second,
	"MAX_HEADER_BYTES":    1 << 20,
	"GIN_MODE":            "release",

	// Logging / Docs
	"LOG_LEVEL":       "info",
	"LOG_PRETTY":      false,
	"SWAGGER_ENABLED": false,
	"API_BASE_PATH":   "/api/v1",

	// Database
	"DB_DRIVER":    "sqlite",
	"DB_PATH":      "lms.db",
	"DATABASE_URL": "",

	// Rate limiting
	"RATE_RPS":   5.0,
	"RATE_BURST": 10,

	// Web protection
	"CORS_ALLOWED_ORIGINS": "",
	"ENABLE_HSTS":          false,
	"HSTS_MAX_AGE":         180 * 24 * time.Hour,

	"IDEMPOTENCY_TTL": 24 * time.Hour,

	// Auth
	"AUTH_JWT_SECRET":          "",
	"AUTH_ISSUER":              "go-lms-backend",
	"AUTH_TOKEN_TTL":           24 * time.Hour,
	"BOOTSTRAP_ADMIN_EMAIL":    "",
	"BOOTSTRAP_ADMIN_PASSWORD": "",

	// Payment
	"PAYMENT_PROVIDER":       "sandbox",
	"PAYMENT_BASE_URL":       "https://api.razorpay.com",
	"PAYMENT_KEY_ID":         "",
	"PAYMENT_KEY_SECRET":     "",
	"PAYMENT_WEBHOOK_SECRET": "",
	"PAYMENT_CURRENCY":       "INR",
	"PAYMENT_PENDING_TTL":    2 * time.Hour,
	"PAYMENT_SWEEP_INTERVAL": 10 * time.Minute,

	// Doubts
	"DOUBT_TITLE_MAX_RUNES":       200,
	"DOUBT_DESCRIPTION_MAX_RUNES": 5000,
	"DOUBT_MESSAGE_MAX_RUNES":     5000,
	"DOUBT_MAX_TAGS":              10,
	"DOUBT_TAG_MAX_RUNES":         32,

	// Real-time
	"WS_ALLOWED_ORIGINS":   "",
	"WS_MAX_MESSAGE_BYTES": int64(16 << 10),
	"WS_PING_INTERVAL":     30 * time.Second,
	"WS_SEND_BUFFER":       64,
	"WS_EVENT_RPS":         10.0,
	"WS_EVENT_BURST":       20,
	"REDIS_URL":            "",
	"REDIS_CHANNEL":        "lms:doubt-rooms",

	// Observability (OpenTelemetry)
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE": true,
	"OTEL_SERVICE_NAME":           "go-lms-backend",
	"OTEL_TRACES_SAMPLER_ARG":     1.0,
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
