package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facemark-labs/facemark/internal/api/handler"
	"github.com/facemark-labs/facemark/internal/api/middleware"
	"github.com/facemark-labs/facemark/internal/auth"
	"github.com/facemark-labs/facemark/internal/enrollment"
	"github.com/facemark-labs/facemark/internal/notify"
	"github.com/facemark-labs/facemark/internal/service"
)

type Dependencies struct {
	Enrollment *enrollment.Service
	Attendance *service.AttendanceService
	Webhooks   *notify.Service
	JWTService *auth.JWTService
	DB         *pgxpool.Pool

	// Webhook delivery tuning; zero values keep the worker defaults.
	WebhookPollInterval time.Duration
	WebhookBatchSize    int
}

type Router struct {
	app           *fiber.App
	logger        *slog.Logger
	deps          *Dependencies
	webhookWorker *notify.Worker
	cancelWorker  context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facemark API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check endpoints (no auth required)
	var pinger handler.Pinger
	if r.deps != nil && r.deps.DB != nil {
		pinger = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(pinger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// API v1 group with authentication
	v1 := r.app.Group("/v1")

	// Only configure authenticated routes if dependencies were provided
	if r.deps != nil {
		// Webhook delivery worker
		webhookService := r.deps.Webhooks
		if webhookService == nil {
			webhookService = notify.NewService(r.deps.DB)
		}
		r.webhookWorker = notify.NewWorker(r.deps.DB, webhookService, r.logger).
			WithPollInterval(r.deps.WebhookPollInterval).
			WithBatchSize(r.deps.WebhookBatchSize)

		ctx, cancel := context.WithCancel(context.Background())
		r.cancelWorker = cancel
		go r.webhookWorker.Run(ctx)

		// Auth middleware
		v1.Use(middleware.Auth(middleware.AuthDependencies{
			JWTService: r.deps.JWTService,
			Logger:     r.logger,
		}))

		// Face enrollment routes
		faceHandler := handler.NewFaceHandler(r.deps.Enrollment, r.logger)
		v1.Post("/faces", faceHandler.Register)
		v1.Get("/faces", faceHandler.List)
		v1.Delete("/faces/:encoding_id", faceHandler.Delete)

		// Attendance routes
		attendanceHandler := handler.NewAttendanceHandler(r.deps.Attendance, r.logger)
		v1.Post("/sessions/:session_id/attendance/self", attendanceHandler.MarkSelf)
		v1.Get("/attendance/history", attendanceHandler.MyHistory)

		// Lecturer-only routes
		lecturer := v1.Group("", middleware.RequireLecturer())
		sessionHandler := handler.NewSessionHandler(r.deps.Attendance, r.logger)
		lecturer.Post("/sessions", sessionHandler.Create)
		lecturer.Post("/sessions/:session_id/close", sessionHandler.Close)
		lecturer.Post("/sessions/:session_id/attendance/photo", attendanceHandler.MarkByPhoto)
		lecturer.Post("/sessions/:session_id/attendance", attendanceHandler.MarkManual)
		lecturer.Get("/sessions/:session_id/attendance", attendanceHandler.SessionRecords)

		// Webhook administration
		webhookHandler := handler.NewWebhookHandler(webhookService, r.logger)
		lecturer.Get("/webhooks", webhookHandler.List)
		lecturer.Post("/webhooks", webhookHandler.Create)
		lecturer.Delete("/webhooks/:id", webhookHandler.Delete)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop webhook worker
	if r.cancelWorker != nil {
		r.cancelWorker()
	}

	return r.app.Shutdown()
}
