// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shapeit/internal/cache"
	"shapeit/internal/config"
	"shapeit/internal/database"
	"shapeit/internal/featureflags"
	"shapeit/internal/github"
	"shapeit/internal/middleware"
	"shapeit/internal/models"
	"shapeit/internal/notifications"
	"shapeit/internal/repository"
	"shapeit/internal/service"
	"shapeit/internal/storage"
	"shapeit/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	sessions     *middleware.Sessions
	limiter      *middleware.RateLimiter
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	blobs        *storage.DiskStore

	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	reactionRepo repository.ReactionRepository

	userService     *service.UserService
	postService     *service.PostService
	reactionService *service.ReactionService
	feedService     *service.FeedService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, events and revocation are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	blobs, err := storage.NewDiskStore(cfg.BlobDir, cfg.BlobPublicBaseURL)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("shapeit-api"),
		sessions:       middleware.NewSessions(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, redisClient),
		limiter:        middleware.NewRateLimiter(redisClient, cfg.Env),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		blobs:          blobs,
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		reactionRepo:   repository.NewReactionRepository(db),
	}

	server.sessions.WithUserCheck(server.userExists)

	provider := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubUserAgent,
		time.Duration(cfg.GitHubTimeoutSeconds)*time.Second)
	uploader := service.NewUploader(blobs, cfg.BlobMaxUploadSizeMB, service.FallbackUploadAnyway)

	server.userService = service.NewUserService(server.userRepo, provider, server.featureFlags)
	server.postService = service.NewPostService(server.postRepo, uploader, server.notifier, server.featureFlags)
	server.reactionService = service.NewReactionService(server.postRepo, server.reactionRepo, server.notifier)
	server.feedService = service.NewFeedService(server.userRepo, server.postRepo, server.reactionRepo, cfg.FeedPageSize)

	return server, nil
}

// App returns the configured Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		app := fiber.New(fiber.Config{
			AppName:      "shapeit API",
			BodyLimit:    s.bodyLimit(),
			ErrorHandler: errorHandler,
		})
		s.SetupMiddleware(app)
		s.SetupRoutes(app)
		s.app = app
	}
	return s.app
}

// bodyLimit leaves room for a post with the maximum number of full-size images.
func (s *Server) bodyLimit() int {
	perImage := s.config.BlobMaxUploadSizeMB
	if perImage <= 0 {
		perImage = service.DefaultMaxUploadSizeMB
	}
	return (perImage*validation.MaxPostImages + 1) * 1024 * 1024
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/media", s.config.BlobDir, fiber.Static{
		MaxAge: 365 * 24 * 60 * 60,
	})

	api := app.Group("/api")
	api.Get("/features", s.GetFeatureFlags)
	api.Get("/ws", s.WebsocketUpgrade, s.FeedWebsocketHandler())

	auth := api.Group("/auth")
	auth.Post("/provider", s.ProviderSignIn)
	auth.Post("/enrich", s.AuthRequired(), s.EnrichProfile)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	posts := api.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Get("/count", s.GetPostCount)
	posts.Post("/", s.AuthRequired(),
		s.limiter.Handler("create_post", 5, time.Minute, middleware.FailOpen), s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Post("/:id/reactions", s.AuthRequired(),
		s.limiter.Handler("react", 60, time.Minute, middleware.FailOpen), s.ToggleReaction)
	posts.Post("/:id/report", s.AuthRequired(),
		s.limiter.Handler("report", 5, 10*time.Minute, middleware.FailClosed), s.ReportPost)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	users := api.Group("/users")
	// /me before /:username
	users.Get("/me", s.AuthRequired(), s.GetMyProfile)
	users.Delete("/me", s.AuthRequired(), s.DeleteMyAccount)
	users.Get("/:username/posts", s.GetUserPosts)
	users.Get("/:username", s.GetUserProfile)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return s.sessions.Required()
}

// userExists backs the session check that turns tokens of deleted accounts away.
func (s *Server) userExists(ctx context.Context, userID uint) (bool, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if models.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// optionalViewerID returns the authenticated viewer, or 0 for anonymous requests.
func (s *Server) optionalViewerID(c *fiber.Ctx) uint {
	return s.sessions.OptionalViewer(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports 503 when the database is unreachable or Redis is
// configured but failing. Running without Redis at all is allowed.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.startEventRelay(s.shutdownCtx); err != nil {
		middleware.Logger.Warn("event subscription failed", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error closing websocket clients", slog.String("error", err.Error()))
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
