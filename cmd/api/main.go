package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/propline/dealdesk-backend/internal/config"
	"github.com/propline/dealdesk-backend/internal/handler"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/notify"
	"github.com/propline/dealdesk-backend/internal/repository/postgres"
	"github.com/propline/dealdesk-backend/internal/repository/storage"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	txm := postgres.NewTxManager(pool)
	dealRepo := postgres.NewDealRepository(pool)
	planRepo := postgres.NewPaymentPlanRepository(pool)
	unitRepo := postgres.NewUnitRepository(pool)
	blockRepo := postgres.NewBlockRepository(pool)
	formRepo := postgres.NewReservationFormRepository(pool)
	contractRepo := postgres.NewContractRepository(pool)
	policyRepo := postgres.NewPolicyRepository(pool)
	pricingRepo := postgres.NewStandardPricingRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	documentRepo, err := storage.NewS3DocumentRepository(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize document storage")
	}

	// Notification hub and sinks. The hub pushes to connected websocket
	// clients; the log sink keeps a delivery trail either way.
	hub := notify.NewHub()
	sink := notify.NewFanOutSink(notify.NewLogSink(log.Logger), hub)
	notifier := service.NewNotifier(notificationRepo, sink, log.Logger)

	// Initialize services
	evaluationService := service.NewEvaluationService(pricingRepo, policyRepo, log.Logger)
	dealService := service.NewDealService(txm, dealRepo, historyRepo, log.Logger)
	planService := service.NewPlanService(txm, dealRepo, planRepo, policyRepo, historyRepo, evaluationService, notifier, log.Logger)
	blockService := service.NewBlockService(txm, blockRepo, unitRepo, historyRepo, notifier, log.Logger)
	reservationService := service.NewReservationService(txm, formRepo, planRepo, unitRepo, blockRepo, historyRepo, notifier, log.Logger)
	contractService := service.NewContractService(txm, contractRepo, formRepo, planRepo, dealRepo, unitRepo, historyRepo, documentRepo, notifier, log.Logger)
	policyService := service.NewPolicyService(policyRepo, log.Logger)

	// Background schedulers
	expiryWorker := service.NewBlockExpiryWorker(txm, blockRepo, unitRepo, historyRepo, notifier, log.Logger, cfg.BlockExpirySweepEvery, cfg.SchedulerBatchSize)
	reminderWorker := service.NewHoldReminderWorker(txm, blockRepo, notifier, log.Logger, cfg.HoldReminderSweepEvery, cfg.SchedulerBatchSize)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	expiryWorker.Start(workerCtx)
	reminderWorker.Start(workerCtx)

	// Initialize auth middleware and rate limiter
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}
	rateLimiter := middleware.NewRateLimiter()

	// Initialize handlers
	calculatorHandler := handler.NewCalculatorHandler(evaluationService)
	dealHandler := handler.NewDealHandler(dealService)
	planHandler := handler.NewPaymentPlanHandler(planService)
	blockHandler := handler.NewBlockHandler(blockService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	contractHandler := handler.NewContractHandler(contractService)
	policyHandler := handler.NewPolicyHandler(policyService)
	notificationHandler := handler.NewNotificationHandler(hub, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Body limit middleware
	e.Use(echomiddleware.BodyLimit(cfg.BodyLimit))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter,
		calculatorHandler, dealHandler, planHandler, blockHandler,
		reservationHandler, contractHandler, policyHandler, notificationHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	expiryWorker.Stop()
	reminderWorker.Stop()
	stopWorkers()
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
