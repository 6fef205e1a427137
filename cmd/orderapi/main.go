package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/cutroom/internal"
	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/email"
	"github.com/dukerupert/cutroom/internal/events"
	"github.com/dukerupert/cutroom/internal/handler/webhook"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/orderapi"
	"github.com/dukerupert/cutroom/internal/postgres"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := orderapi.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Shared packages (webhook, telemetry) log through slog.
	slog.SetDefault(internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "orderapi"))

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer flushSentry()

	// Run migrations
	logger.Info().Msg("Running database migrations...")
	sqlDB, err := internal.OpenMigrationDB(cfg.OrderAPI.DatabaseURL)
	if err != nil {
		return err
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()
	logger.Info().Msg("Database migrations completed successfully")

	pool, err := pgxpool.New(ctx, cfg.OrderAPI.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	store := postgres.NewOrderStore(pool)

	// Events
	var publisher events.Publisher = events.Nop{}
	if cfg.OrderAPI.NATSURL != "" {
		natsPublisher, nc, err := events.Connect(cfg.OrderAPI.NATSURL, "cutroom-orderapi")
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = natsPublisher
		logger.Info().Str("url", cfg.OrderAPI.NATSURL).Msg("Publishing order events to NATS")
	} else {
		logger.Warn().Msg("ORDERAPI_NATS_URL not set, order events are discarded")
	}

	// Payment webhooks and card verification. The mock provider cannot see
	// intents created by the storefront, so it never verifies.
	var (
		provider billing.Provider
		verifier billing.Provider
	)
	if cfg.Stripe.SecretKey != "" {
		stripeProvider, err := billing.NewStripeProvider(billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
			Timeout:       cfg.HTTPClientTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		provider = stripeProvider
		verifier = stripeProvider
	} else {
		if cfg.Env == "prod" {
			return errors.New("STRIPE_SECRET_KEY is required in production")
		}
		provider = billing.NewMockProvider()
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, webhook signatures are not verified")
	}

	var mailer orderapi.Mailer
	if cfg.Mail.SMTPHost != "" {
		sender := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
		}, slog.Default())
		mailer = email.NewConfirmations(sender, cfg.Mail.From, orderapi.ReceiptPage)
		logger.Info().Str("host", cfg.Mail.SMTPHost).Msg("Sending order confirmations over SMTP")
	} else {
		logger.Warn().Msg("MAIL_SMTP_HOST not set, order confirmations are disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	business := telemetry.NewBusinessMetrics("cutroom_orderapi", registry)

	e := orderapi.New(orderapi.Deps{
		Store:     store,
		Events:    publisher,
		JWTSecret: []byte(cfg.OrderAPI.JWTSecret),
		Logger:    logger,
		Payments:  verifier,
		Mailer:    mailer,
		Webhook:   webhook.NewStripeHandler(provider, store, publisher, business),
		Metrics:   middleware.NewMetrics("cutroom_orderapi", registry),
		Business:  business,
		Gatherer:  registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OrderAPI.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", srv.Addr).Str("env", cfg.Env).Msg("Starting order API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down order API")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
