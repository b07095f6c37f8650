package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/idunn/internal"
	"github.com/dukerupert/idunn/internal/billing"
	"github.com/dukerupert/idunn/internal/cookie"
	"github.com/dukerupert/idunn/internal/handler/api"
	"github.com/dukerupert/idunn/internal/handler/webhook"
	"github.com/dukerupert/idunn/internal/middleware"
	"github.com/dukerupert/idunn/internal/postgres"
	"github.com/dukerupert/idunn/internal/router"
	"github.com/dukerupert/idunn/internal/routes"
	"github.com/dukerupert/idunn/internal/service"
	"github.com/dukerupert/idunn/internal/telemetry"
	"github.com/dukerupert/idunn/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Migrations run over database/sql; the application uses a pgx pool.
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Stores
	subscriptionStore := postgres.NewSubscriptionStore(pool)
	planStore := postgres.NewPlanStore(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	userStore := postgres.NewUserStore(pool)
	sessionStore := postgres.NewSessionStore(pool)
	notificationStore := postgres.NewNotificationStore(pool)
	webhookEventStore := postgres.NewWebhookEventStore(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Services
	subscriptionService := service.NewSubscriptionService(service.SubscriptionServiceDeps{
		Subscriptions: subscriptionStore,
		Plans:         planStore,
		Users:         userStore,
		Notifications: notificationStore,
		WebhookEvents: webhookEventStore,
		Provider:      billingProvider,
		Logger:        logger,
	})
	limitGate := service.NewLimitGate(subscriptionStore, planStore, logger)
	storeService := service.NewStoreService(storeRepo, limitGate, logger)
	userService := service.NewUserService(userStore, sessionStore, subscriptionService, logger)

	// Business metrics
	telemetry.InitBusinessMetrics("idunn")

	// Expired sessions are swept in the background.
	sweeper := worker.NewSessionSweeper(sessionStore, worker.DefaultSweepInterval, logger)
	go sweeper.Run(ctx)

	// Handlers
	cookies := cookie.NewConfig(cfg.Env != "dev")
	apiDeps := routes.APIDeps{
		Auth:          api.NewAuthHandler(userService, cookies, logger),
		Subscriptions: api.NewSubscriptionHandler(subscriptionService, planStore, logger),
		Stores:        api.NewStoreHandler(storeService, logger),
		Notifications: api.NewNotificationHandler(notificationStore, logger),
	}

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, subscriptionService, webhook.StripeWebhookConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, logger)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	// Middleware
	metrics := middleware.NewMetrics("idunn")

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.ContentSecurityPolicy = ""
		securityConfig.HSTSMaxAge = 0
	}

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	authRateLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		router.Logger(logger),
		middleware.WithUser(userService),
	)

	// Metrics endpoint; protect at the network layer in production.
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Credential endpoints get the stricter rate limit.
	routes.RegisterAPIRoutes(r, apiDeps, authRateLimiter.Middleware)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
