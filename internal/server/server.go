// Package server exposes the routing engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"filetrack/internal/bootstrap"
	"filetrack/internal/clock"
	"filetrack/internal/config"
	"filetrack/internal/featureflags"
	"filetrack/internal/lock"
	"filetrack/internal/middleware"
	"filetrack/internal/models"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"
	"filetrack/internal/service"
	"filetrack/internal/sla"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
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

	store        repository.Store
	notifier     *notifications.Notifier
	emitter      *notifications.Emitter
	featureFlags *featureflags.Manager
	routing      *service.RoutingService
	desks        *service.DeskService
	monitor      *service.RedListMonitor
}

// NewServer connects the runtime dependencies and builds a server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient falls back to in-process locking and log-only notifications.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}

	middleware.InitMiddleware(cfg)
	store := repository.NewStore(db)

	var (
		locker lock.Locker
		sink   notifications.Sink
	)
	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("filetrack-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		locker = lock.NewRedis(redisClient, cfg.LockTTL())
		server.notifier = notifications.NewNotifier(redisClient)
		sink = server.notifier
	} else {
		locker = lock.NewLocal()
		sink = notifications.LogSink{}
	}

	server.emitter = notifications.NewEmitter(sink, cfg.NotifyQueueSize, cfg.NotifyTimeout())
	clk := clock.System{}
	server.desks = service.NewDeskService(store, locker, cfg.DeskDefaultCapacity)
	server.routing = service.NewRoutingService(
		store, locker, clk, sla.NewPolicy(cfg.SLAOverrides()), server.featureFlags, server.emitter, server.desks,
		service.RoutingOptions{
			TransitionTimeout:          cfg.TransitionTimeout(),
			ExtensionRequireSuperAdmin: cfg.ExtensionRequireSuperAdmin,
			ExtensionResetClock:        cfg.ExtensionResetClock,
		},
	)
	server.monitor = service.NewRedListMonitor(store, locker, clk, server.emitter, service.MonitorOptions{
		Interval:    cfg.SweepInterval(),
		Workers:     cfg.SweepWorkers,
		FileTimeout: cfg.TransitionTimeout(),
	})

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.RequestContext())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())
	app.Use(middleware.TracingMiddleware())

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
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

	api := app.Group("/api", middleware.ActorRequired)

	files := api.Group("/files")
	files.Post("/", s.CreateFile)
	// Specific /:id/:resource routes before the generic /:id route
	files.Get("/:id/history", middleware.FileScope, s.GetFileHistory)
	files.Get("/:id/extensions", middleware.FileScope, s.ListExtensions)
	files.Get("/:id/timer", middleware.FileScope, s.GetTimer)
	files.Post("/:id/forward", middleware.FileScope, commandHandler[service.ForwardCmd](s, nil))
	files.Post("/:id/approve", middleware.FileScope, commandHandler[service.ApproveCmd](s, nil))
	files.Post("/:id/reject", middleware.FileScope, commandHandler[service.RejectCmd](s, nil))
	files.Post("/:id/return-previous", middleware.FileScope, commandHandler[service.ReturnToPreviousCmd](s, nil))
	files.Post("/:id/return-host", middleware.FileScope, commandHandler[service.ReturnToHostCmd](s, nil))
	files.Post("/:id/hold", middleware.FileScope, commandHandler[service.HoldCmd](s, nil))
	files.Post("/:id/release", middleware.FileScope, commandHandler[service.ReleaseCmd](s, nil))
	files.Post("/:id/recall", middleware.FileScope, commandHandler[service.RecallCmd](s, nil))
	files.Post("/:id/extensions", middleware.FileScope, commandHandler[service.RequestExtensionCmd](s, nil))
	files.Post("/:id/extensions/:extId/approve", middleware.FileScope, commandHandler(s, func(c *fiber.Ctx, cmd *service.ApproveExtensionCmd) error {
		id, err := s.parseID(c, "extId")
		cmd.ExtensionID = id
		return err
	}))
	files.Post("/:id/extensions/:extId/deny", middleware.FileScope, commandHandler(s, func(c *fiber.Ctx, cmd *service.DenyExtensionCmd) error {
		id, err := s.parseID(c, "extId")
		cmd.ExtensionID = id
		return err
	}))
	files.Post("/:id/desk", middleware.FileScope, s.AssignDesk)
	files.Get("/:id", middleware.FileScope, s.GetFile)

	desks := api.Group("/desks")
	desks.Get("/", s.GetDeskStats)
	desks.Post("/", s.CreateDesk)
	desks.Post("/auto", s.AutoCreateDesk)
	desks.Post("/:id/deactivate", s.DeactivateDesk)

	api.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the store is reachable. Redis is optional: without it the
// engine runs on in-process locks, so only the database gates readiness.
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

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
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

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "filetrack",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, models.HTTPStatus(err), err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start runs the red-list monitor and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	go func() {
		if err := s.monitor.Run(s.shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			middleware.Logger.Error("red-list monitor stopped", slog.String("error", err.Error()))
		}
	}()

	if s.notifier != nil {
		err := s.notifier.StartPatternSubscriber(s.shutdownCtx, func(channel, payload string) {
			middleware.Logger.Debug("notification published",
				slog.String("channel", channel), slog.Int("bytes", len(payload)))
		})
		if err != nil {
			middleware.Logger.Warn("notification subscriber unavailable", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info(fmt.Sprintf("Server starting on port %s...", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the monitor and the subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Drain queued notifications before the Redis client goes away
	if err := s.emitter.Close(ctx); err != nil {
		middleware.Logger.Warn("notification queue not drained", slog.String("error", err.Error()))
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
