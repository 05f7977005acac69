// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tapcard/internal/config"
	"tapcard/internal/connections"
	"tapcard/internal/database"
	"tapcard/internal/feed"
	"tapcard/internal/middleware"
	"tapcard/internal/models"
	"tapcard/internal/notifications"
	"tapcard/internal/observability"
	"tapcard/internal/repository"

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

	bus      *feed.Bus
	notifier *feed.Notifier

	profileRepo      repository.ProfileRepository
	requestRepo      repository.RequestRepository
	connectionRepo   repository.ConnectionRepository
	notificationRepo repository.NotificationRepository

	sessions *connections.Manager
}

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// initPrometheus registers the HTTP metrics collectors once per process;
// repeated server construction (tests) reuses the same middleware.
func initPrometheus() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = fiberprometheus.New("tapcard-api")
	})
	return promMW
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, newRedisClient(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	bus := feed.NewBus()
	var notifier *feed.Notifier
	if redisClient != nil {
		notifier = feed.NewNotifier(redisClient)
	}
	pub := feed.NewFanout(bus, notifier)

	profileRepo := repository.NewProfileRepository(db)
	requestRepo := repository.NewRequestRepository(db, pub)
	connectionRepo := repository.NewConnectionRepository(db, pub)
	notificationRepo := repository.NewNotificationRepository(db, pub)

	sessions := connections.NewManager(connections.ManagerDeps{
		Requests:      requestRepo,
		Connections:   connectionRepo,
		Profiles:      profileRepo,
		Notifications: notifications.NewSink(notificationRepo),
		Bus:           bus,
		Debounce:      time.Duration(cfg.DebounceMS) * time.Millisecond,
		Timeout:       time.Duration(cfg.ReconcileTimeoutS) * time.Second,
	})

	return &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   initPrometheus(),
		bus:              bus,
		notifier:         notifier,
		profileRepo:      profileRepo,
		requestRepo:      requestRepo,
		connectionRepo:   connectionRepo,
		notificationRepo: notificationRepo,
		sessions:         sessions,
	}, nil
}

// newRedisClient connects to Redis, degrading to nil (process-local realtime
// delivery) when the server is unreachable.
func newRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: url})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		observability.GlobalLogger.Warn("Redis unavailable, change feed stays process-local",
			"addr", url, "error", err.Error())
		_ = client.Close()
		return nil
	}
	return client
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// CORS before middlewares that can short-circuit, so browser clients
	// still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
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
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, "register", 3, 10*time.Minute, middleware.FailOpen), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, "login", 10, 5*time.Minute, middleware.FailOpen), s.Login)

	protected := api.Group("", middleware.AuthRequired)
	protected.Post("/auth/logout", s.Logout)

	// Profile routes
	profiles := protected.Group("/profiles")
	profiles.Get("/me", s.GetMyProfile)
	profiles.Put("/me", s.UpdateMyProfile)
	profiles.Get("/search", s.SearchProfiles)
	profiles.Get("/:id", s.GetProfile)

	// Connection routes. Specific paths before the generic /:id routes.
	conns := protected.Group("/connections")
	conns.Get("/", s.GetConnections)
	conns.Get("/requests", s.GetIncomingRequests)
	conns.Get("/requests/sent", s.GetOutgoingRequests)
	conns.Post("/requests/:userId", middleware.RateLimit(
		s.redis, "send_request", 5, 5*time.Minute, middleware.FailOpen), s.SendConnectionRequest)
	conns.Post("/requests/:requestId/accept", s.AcceptConnectionRequest)
	conns.Post("/requests/:requestId/decline", s.DeclineConnectionRequest)
	conns.Get("/status/:userId", s.GetConnectionStatus)
	conns.Get("/connected", s.CheckConnectedEmail)
	conns.Put("/:id/notes", s.UpdateConnectionNotes)
	conns.Delete("/:id", s.DeleteConnection)

	// Notification routes
	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)

	// Websocket endpoint - protected by AuthRequired
	ws := api.Group("/ws", middleware.AuthRequired)
	ws.Get("/", upgradeRequired, s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
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
		// Without Redis the server still works, realtime stays process-local.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
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

// Start starts the server and blocks until it is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "TapCard API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Bridge remote change events into the local bus.
	if s.notifier != nil {
		if err := s.notifier.StartSubscriber(ctx, s.bus); err != nil {
			log.Printf("failed to start feed subscriber: %v", err)
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Drop every session and stop their dispatchers.
	s.sessions.Close()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
