// Command server runs the LMS API: REST endpoints, the doubt WebSocket
// channel and the payment reconciliation sweeper.
//
//	@title						LMS Backend API
//	@version					1.0
//	@description				Doubt threads, real-time rooms and course checkout for the learning platform.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/config"
	"github.com/tbourn/go-lms-backend/internal/gateway"
	httpapi "github.com/tbourn/go-lms-backend/internal/http"
	"github.com/tbourn/go-lms-backend/internal/observability"
	"github.com/tbourn/go-lms-backend/internal/realtime"
	"github.com/tbourn/go-lms-backend/internal/repo"
	"github.com/tbourn/go-lms-backend/internal/services"
	"github.com/tbourn/go-lms-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout        = 15 * time.Second
	idempotencyPurgePeriod = time.Hour
	hubReadyTimeout        = 10 * time.Second
)

func main() {
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.ConfigureLogger(sysutil.LoggerOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: appVersion,
	})
	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		log.Warn().Err(dotenvErr).Msg(".env could not be loaded; using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx, cfg, appVersion); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config, appVersion string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	auth := services.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if cfg.Auth.BootstrapAdminEmail != "" {
		if err := auth.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
			return err
		}
	}

	gw, err := newGateway(cfg.Payment)
	if err != nil {
		return err
	}
	payments := services.NewPaymentService(db, gw, cfg.Payment.KeySecret, cfg.Payment.WebhookSecret)
	payments.Currency = cfg.Payment.Currency
	payments.Metrics = metrics

	hubOpts := []realtime.HubOption{realtime.WithMetrics(metrics)}
	if cfg.Realtime.RedisURL != "" {
		broker, err := realtime.NewRedisBroker(cfg.Realtime.RedisURL, cfg.Realtime.RedisChannel)
		if err != nil {
			return err
		}
		defer broker.Close()
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = broker.Ping(pctx)
		cancel()
		if err != nil {
			return err
		}
		hubOpts = append(hubOpts, realtime.WithBroker(broker))
		log.Info().Str("channel", cfg.Realtime.RedisChannel).Msg("realtime fan-out via redis")
	}
	hub := realtime.NewHub(hubOpts...)

	doubts := services.NewDoubtService(db, hub, services.DoubtLimits{
		TitleMaxRunes:       cfg.Doubt.TitleMaxRunes,
		DescriptionMaxRunes: cfg.Doubt.DescriptionMaxRunes,
		MessageMaxRunes:     cfg.Doubt.MessageMaxRunes,
		MaxTags:             cfg.Doubt.MaxTags,
		TagMaxRunes:         cfg.Doubt.TagMaxRunes,
	})
	doubts.IdempotencyTTL = cfg.IdempotencyTTL

	ws := realtime.NewServer(hub, doubts, auth, realtime.Options{
		AllowedOrigins:  cfg.Realtime.AllowedOrigins,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		PingInterval:    cfg.Realtime.PingInterval,
		SendBuffer:      cfg.Realtime.SendBuffer,
		EventRPS:        cfg.Realtime.EventRPS,
		EventBurst:      cfg.Realtime.EventBurst,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Auth:     auth,
		Doubts:   doubts,
		Payments: payments,
		Realtime: ws,
		Provider: gw.Provider(),
	}, cfg)

	ctx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	background := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Debug().Str("worker", name).Msg("background worker stopped")
		}()
	}
	background("hub", func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("realtime hub relay stopped")
		}
	})
	background("payment-sweeper", func() {
		payments.RunSweeper(ctx, cfg.Payment.SweepInterval, cfg.Payment.PendingTTL)
	})
	background("idempotency-janitor", func() { purgeIdempotency(ctx, db) })

	// Serve only once room events from peers can reach this instance.
	select {
	case <-hub.Ready():
	case <-time.After(hubReadyTimeout):
		cancelWorkers()
		wg.Wait()
		return errors.New("realtime broker subscription not confirmed in time")
	case <-ctx.Done():
		wg.Wait()
		return nil
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Str("payment_provider", gw.Provider()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Upgraded sockets are hijacked and not tracked by Shutdown.
	hub.Close()
	if serr := srv.Shutdown(sctx); serr != nil {
		log.Error().Err(serr).Msg("http shutdown")
	}
	cancelWorkers()
	wg.Wait()
	return err
}

// newGateway selects the configured payment provider.
func newGateway(cfg config.PaymentConfig) (gateway.Client, error) {
	if cfg.Provider == gateway.ProviderRazorpay {
		return gateway.NewRazorpay(cfg.BaseURL, cfg.KeyID, cfg.KeySecret), nil
	}
	log.Warn().Msg("payment provider is the sandbox; no real charges are made")
	sb, err := gateway.NewSandbox(1, sysutil.FirstNonEmpty(cfg.KeyID, "rzp_test_sandbox"))
	if err != nil {
		return nil, err
	}
	return sb, nil
}

// purgeIdempotency drops expired idempotency records once an hour.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(idempotencyPurgePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				zerolog.Ctx(ctx).Debug().Int64("rows", n).Msg("expired idempotency keys purged")
			}
		}
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
