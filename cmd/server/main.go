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
	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/handler/storefront"
	"github.com/dukerupert/cutroom/internal/identity"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/orders"
	"github.com/dukerupert/cutroom/internal/router"
	"github.com/dukerupert/cutroom/internal/routes"
	"github.com/dukerupert/cutroom/internal/service"
	"github.com/dukerupert/cutroom/internal/session"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "storefront")
	slog.SetDefault(logger)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	registry := prometheus.NewRegistry()
	business := telemetry.NewBusinessMetrics("cutroom", registry)

	upstreamClient := func(name string) *http.Client {
		return &http.Client{
			Timeout:   cfg.HTTPClientTimeout,
			Transport: &telemetry.HTTPTransport{Upstream: name, Metrics: business},
		}
	}

	// Catalog
	var catalogProvider catalog.Provider
	if cfg.Catalog.URL != "" {
		catalogProvider = catalog.NewHTTPProvider(catalog.HTTPConfig{
			BaseURL: cfg.Catalog.URL,
			TTL:     cfg.Catalog.TTL,
			Timeout: cfg.HTTPClientTimeout,
		}, upstreamClient("catalog"), logger)
		logger.Info("Using remote catalog", "url", cfg.Catalog.URL)
	} else {
		static, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return fmt.Errorf("catalog load failed: %w", err)
		}
		catalogProvider = static
		logger.Info("Using catalog file", "path", cfg.Catalog.File)
	}

	// Sessions and the paid-route limiter share Redis when it is configured
	checks := map[string]storefront.Pinger{}
	var (
		store       session.Store
		paidLimiter middleware.Limiter
	)
	if cfg.Session.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Session.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid SESSION_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		redisStore := session.NewRedisStore(client, cfg.Session.TTL)
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		store = redisStore
		checks["sessions"] = redisStore
		paidLimiter = middleware.NewRedisLimiter(client, "paid", middleware.PaidQuota)
		logger.Info("Session store connected", "backend", "redis")
	} else {
		store = session.NewMemoryStore(cfg.Session.TTL)
		memLimiter := middleware.NewMemoryLimiter(middleware.PaidQuota)
		defer memLimiter.Stop()
		paidLimiter = memLimiter
		logger.Warn("Using in-memory session store; sessions are lost on restart")
	}
	sessions := session.NewManager(store, logger)
	cookies := cookie.NewConfig(cfg.Session.CookieDomain, cfg.Session.CookieSecure, cfg.Session.TTL)

	// Payments
	var billingProvider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
			MaxRetries:    3,
			Timeout:       cfg.HTTPClientTimeout,
		}
		stripeProvider, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		billingProvider = stripeProvider
		logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())
	} else {
		if cfg.Env == "prod" {
			return errors.New("STRIPE_SECRET_KEY is required in production")
		}
		billingProvider = billing.NewMockProvider()
		logger.Warn("STRIPE_SECRET_KEY not set, using mock billing provider")
	}

	// Services
	resolver := identity.NewResolver(identity.NewHTTPClient(cfg.Identity.BaseURL, upstreamClient("identity")), logger)
	orderClient := orders.NewClient(cfg.OrderAPI.BaseURL, upstreamClient("orderapi"))

	cartService := service.NewCartService(service.CartServiceParams{
		Sessions:  sessions,
		Catalog:   catalogProvider,
		PromoCode: cfg.PromoCode,
		Metrics:   business,
		Logger:    logger,
	})
	checkoutService := service.NewCheckoutService(service.CheckoutServiceParams{
		Sessions:  sessions,
		Catalog:   catalogProvider,
		Identity:  resolver,
		Billing:   billingProvider,
		Orders:    orderClient,
		PromoCode: cfg.PromoCode,
		Metrics:   business,
		Logger:    logger,
	})

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	metrics := middleware.NewMetrics("cutroom", registry)

	browsingLimiter := middleware.NewMemoryLimiter(middleware.BrowsingQuota)
	defer browsingLimiter.Stop()

	r := router.New(
		router.Recovery(),
		middleware.RequestID,
		middleware.WithSession,
		middleware.WithRequestLogger(logger),
		middleware.AccessLog,
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.SecurityHeaders(cfg.Env != "dev"),
		router.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(browsingLimiter, middleware.ShopperKey),
		middleware.CSRF(cookies, "/health", "/metrics"),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health:  storefront.Health(checks),
		Metrics: middleware.Handler(registry),
	})
	routes.RegisterStorefrontRoutes(r, routes.StorefrontDeps{
		CatalogHandler:  storefront.NewCatalogHandler(catalogProvider),
		CartHandler:     storefront.NewCartHandler(cartService, cookies),
		CheckoutHandler: storefront.NewCheckoutHandler(checkoutService, cookies),
		PaidLimiter:     paidLimiter,
	})
	for _, rt := range r.Routes() {
		logger.Debug("route registered", "method", rt.Method, "pattern", rt.Pattern)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting storefront server", "address", srv.Addr, "env", cfg.Env)
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
		logger.Info("Shutting down storefront server")
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
