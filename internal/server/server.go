// Package server contains the HTTP handlers for the twitsnap API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"twitsnap/internal/cache"
	"twitsnap/internal/clients"
	"twitsnap/internal/config"
	"twitsnap/internal/database"
	"twitsnap/internal/featureflags"
	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/notifications"
	"twitsnap/internal/observability"
	"twitsnap/internal/repository"
	"twitsnap/internal/service"
	"twitsnap/internal/tasks"

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

const (
	backgroundWorkers = 16
	createSnapLimit   = 30
)

// UsersService is what the server needs from the users service: follow-graph
// reads for feeds plus the blocked-account check run on every request.
type UsersService interface {
	service.FollowGraph
	middleware.BlockChecker
}

// Collaborators are the outbound services a Server calls. Nil fields are
// built from the configured service URLs.
type Collaborators struct {
	Users   UsersService
	Ranker  service.Ranker
	Metrics service.MetricsRecorder
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *middleware.TokenService
	users          UsersService
	featureFlags   *featureflags.Manager
	runner         *tasks.Runner
	trending       *service.TrendingCache
	feed           *service.FeedService
	snaps          *service.SnapService
	likes          *service.ReactionService
	bookmarks      *service.ReactionService
}

// NewServer connects to the database and Redis and creates a server talking
// to the configured collaborator services.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient, Collaborators{})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, collab Collaborators) (*Server, error) {
	flags := featureflags.NewManager(cfg.FeatureFlags)
	if cfg.FlagsFile != "" {
		if err := flags.LoadFile(cfg.FlagsFile); err != nil {
			return nil, err
		}
	}

	tokens := middleware.NewTokenService(cfg.JWTSecret)
	if collab.Users == nil {
		collab.Users = clients.NewFollowGraph(cfg.UsersServiceURL, cfg.DownstreamTimeout, tokens)
	}
	if collab.Ranker == nil {
		collab.Ranker = clients.NewRanking(cfg.FeedAlgorithmURL, cfg.DownstreamTimeout)
	}
	if collab.Metrics == nil {
		collab.Metrics = clients.NewMetrics(cfg.MetricServiceURL, cfg.DownstreamTimeout)
	}

	snapRepo := repository.NewSnapRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	bookmarkRepo := repository.NewBookmarkRepository(db)

	runner := tasks.NewRunner(backgroundWorkers, cfg.DownstreamTimeout)
	notifier := notifications.NewNotifier(redisClient)
	trending := service.NewTrendingCache(collab.Ranker, redisClient, cfg.TrendingTTL, cfg.TrendingLimit, cfg.DownstreamTimeout)
	interactions := service.NewInteractionAggregator(snapRepo, likeRepo, bookmarkRepo)
	feed := service.NewFeedService(snapRepo, bookmarkRepo, collab.Users, collab.Ranker, flags, interactions, trending)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: observability.HTTPMetrics(cfg.ServiceName),
		tokens:         tokens,
		users:          collab.Users,
		featureFlags:   flags,
		runner:         runner,
		trending:       trending,
		feed:           feed,
		snaps: service.NewSnapService(snapRepo, collab.Users, collab.Ranker, collab.Metrics,
			notifier, runner, flags, trending),
		likes:     service.NewLikeService(snapRepo, likeRepo, feed, collab.Metrics, runner, flags),
		bookmarks: service.NewBookmarkService(snapRepo, bookmarkRepo, feed),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Request ID and trace ID into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	if s.config.RateLimitRPM > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.RateLimitRPM,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Get("/share/:twitId", s.ShareSnap)

	protected := app.Group("", middleware.AuthRequired(s.tokens, s.users))

	snaps := protected.Group("/snaps")
	snaps.Post("/", middleware.RateLimit(s.redis, createSnapLimit, time.Minute, middleware.FailOpen, "create_snap"), s.CreateSnap)
	snaps.Get("/", s.GetSnaps)
	// Fixed paths before the generic /:id route.
	snaps.Get("/amount", s.CountSnaps)
	snaps.Get("/trending", s.GetTrending)
	snaps.Get("/:id", s.GetSnap)
	snaps.Patch("/:id", s.EditSnap)
	snaps.Delete("/:id", s.DeleteSnap)

	protected.Get("/hashtags/:hashtag", s.GetHashtagSnaps)

	likes := protected.Group("/likes")
	likes.Post("/", s.AddLike)
	likes.Delete("/", s.RemoveLike)
	likes.Get("/twits/:twitId", s.CountLikes)
	likes.Get("/user", s.GetLikedSnaps)

	bookmarks := protected.Group("/bookmarks")
	bookmarks.Post("/", s.AddBookmark)
	bookmarks.Delete("/", s.RemoveBookmark)
	bookmarks.Get("/twits/:twitId", s.CountBookmarks)

	admin := protected.Group("/admin", AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "TwitSnap API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SyncIndex pushes every stored snap to the ranking service.
func (s *Server) SyncIndex(ctx context.Context) error {
	return s.snaps.SyncIndex(ctx)
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Let in-flight best-effort tasks finish before their stores close.
	s.runner.Wait()

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
