package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facemark-labs/facemark/internal/api"
	"github.com/facemark-labs/facemark/internal/auth"
	"github.com/facemark-labs/facemark/internal/cache"
	"github.com/facemark-labs/facemark/internal/config"
	"github.com/facemark-labs/facemark/internal/database"
	"github.com/facemark-labs/facemark/internal/enrollment"
	"github.com/facemark-labs/facemark/internal/extractor"
	"github.com/facemark-labs/facemark/internal/ledger"
	"github.com/facemark-labs/facemark/internal/match"
	"github.com/facemark-labs/facemark/internal/notify"
	"github.com/facemark-labs/facemark/internal/quality"
	"github.com/facemark-labs/facemark/internal/ratelimit"
	"github.com/facemark-labs/facemark/internal/repository"
	"github.com/facemark-labs/facemark/internal/service"
	"github.com/facemark-labs/facemark/internal/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Facemark API",
		slog.String("environment", cfg.Environment),
		slog.String("extractor", cfg.ExtractorKind),
		slog.Int("port", cfg.Port),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool
	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Verification pipeline
	ext, err := extractor.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	if closer, ok := ext.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	matcher := match.NewMatcher(match.MetricFor(extractor.Kind(cfg.ExtractorKind)), cfg.MaxFaceDistance)
	engine := verify.NewEngine(ext, quality.NewScorer(), matcher).
		WithQualityThreshold(cfg.QualityThreshold)

	// Repositories
	attendanceRepo := repository.NewAttendanceRepository(pool)
	encodingRepo := repository.NewFaceEncodingRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	logRepo := repository.NewVerificationLogRepository(pool)

	// Supporting infrastructure
	galleryCache := cache.NewGalleryCache(cache.NewPGCache(pool), cfg.GalleryCacheTTL)
	limiter := ratelimit.NewRateLimiter(pool, cfg.SelfMarkRateWindow)
	webhookService := notify.NewService(pool)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)

	// Services
	enrollmentService := enrollment.NewService(encodingRepo, sessionRepo, engine, galleryCache, webhookService, logger)
	attendanceService := service.NewAttendanceService(
		sessionRepo,
		attendanceRepo,
		logRepo,
		enrollmentService,
		engine,
		ledger.New(attendanceRepo),
		limiter,
		webhookService,
		cfg.SelfMarkRateLimit,
		logger,
	)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Enrollment:          enrollmentService,
		Attendance:          attendanceService,
		Webhooks:            webhookService,
		JWTService:          jwtService,
		DB:                  pool,
		WebhookPollInterval: cfg.WebhookPollInterval,
		WebhookBatchSize:    cfg.WebhookBatchSize,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}
