// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "stackit/docs" // swagger docs
	"stackit/internal/config"
	"stackit/internal/featureflags"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"
	"stackit/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

const (
	authRateLimit  = 5
	authRateWindow = 15 * time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          *repository.Store
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	questionService     *service.QuestionService
	answerService       *service.AnswerService
	voteService         *service.VoteService
	authService         *service.AuthService
	notificationService *service.NotificationService

	closers []func() error
}

// NewServerWithDeps creates a Server from an already selected store and an
// optional Redis client.
func NewServerWithDeps(cfg *config.Config, store *repository.Store, redisClient *redis.Client) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: store is required")
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		store:          store,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("stackit-api"),
		notifier:       notifier,
		hub:            notifications.NewHub(),
		featureFlags:   flags,
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())

	s.notificationService = service.NewNotificationService(store.Notifications, store.Users, store.Questions, notifier, flags)
	s.questionService = service.NewQuestionService(store.Questions, store.Answers, store.Users, flags)
	s.answerService = service.NewAnswerService(store.Answers, s.notificationService)
	s.voteService = service.NewVoteService(store.Votes, store.Answers)
	s.authService = service.NewAuthService(store.Users, redisClient, cfg.JWTSecret, cfg.JWTTTL)

	return s, nil
}

// OnShutdown registers fn to run after the HTTP server and hub have stopped.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "StackIt API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return models.RespondWithAppError(c, err)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// rateLimitDisabled mirrors the environments where the Redis limiter is bypassed.
func (s *Server) rateLimitDisabled() bool {
	switch s.config.Env {
	case "test", "stress":
		return true
	}
	return false
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// swagger UI loads inline scripts
		Next: func(c *fiber.Ctx) bool { return strings.HasPrefix(c.Path(), "/api/swagger") },
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so 429 responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.rateLimitDisabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: tooManyRequests,
	}))
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": "Too many requests, please try again later.",
	})
}

// authLimiter allows authRateLimit attempts per window per IP. Redis backs the
// counter when available so the limit holds across instances.
func (s *Server) authLimiter() fiber.Handler {
	if s.redis != nil {
		return middleware.RateLimit(s.redis, authRateLimit, authRateWindow, "auth")
	}
	return limiter.New(limiter.Config{
		Max:          authRateLimit,
		Expiration:   authRateWindow,
		Next:         func(*fiber.Ctx) bool { return s.rateLimitDisabled() },
		KeyGenerator: func(c *fiber.Ctx) string { return "auth:" + c.IP() },
		LimitReached: tooManyRequests,
	})
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/ping", s.Ping)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "StackIt Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authLimit := s.authLimiter()
	auth := api.Group("/auth")
	auth.Post("/register", authLimit, s.Register)
	auth.Post("/login", authLimit, s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/profile", s.AuthRequired(), s.Profile)

	questions := api.Group("/questions")
	questions.Get("/", s.OptionalAuth(), s.ListQuestions)
	questions.Get("/:id", s.OptionalAuth(), s.GetQuestion)
	questions.Post("/", s.AuthRequired(), s.CreateQuestion)

	api.Get("/tags", s.GetTags)

	answers := api.Group("/answers", s.AuthRequired())
	answers.Post("/", s.CreateAnswer)
	answers.Post("/:id/accept", s.AcceptAnswer)

	api.Post("/vote", s.AuthRequired(), s.Vote)

	notifs := api.Group("/notifications", s.AuthRequired())
	notifs.Get("/", s.GetNotifications)
	notifs.Post("/mark-read", s.MarkNotificationsRead)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// Ping handles GET /api/ping
// @Summary Ping
// @Tags health
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /ping [get]
func (s *Server) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "pong"})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports store and Redis health. Redis is optional, so only
// an unreachable store fails the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case storeStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy" || !s.store.Durable():
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": storeStatus,
			"redis":    redisStatus,
		},
		"store":   s.store.Kind(),
		"durable": s.store.Durable(),
		"time":    time.Now(),
	})
}

// Start wires the notification hub and listens on the configured port.
func (s *Server) Start() error {
	app := s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("store", s.store.Kind()),
		slog.Bool("redis", s.redis != nil),
	)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down notification hub", slog.String("error", err.Error()))
	}

	var errs []error
	for _, fn := range s.closers {
		errs = append(errs, fn())
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
