package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustSympa/agariki/internal/config"
	"github.com/JustSympa/agariki/internal/database"
	"github.com/JustSympa/agariki/internal/logging"
	"github.com/JustSympa/agariki/internal/metrics"
	"github.com/JustSympa/agariki/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		logger.Fatal("DB_URL is required")
	}
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DBUrl); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB()

	// Redis is optional: without it the profile cache and realtime fan-out
	// stay in this process.
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process cache and hub", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	metrics.MustRegister(cfg.ServiceName)

	// 3. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(metrics.Middleware())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := database.DB.Ping(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if err := routes.RegisterRoutes(ctx, app, cfg, database.DB, rdb, logger); err != nil {
		logger.Fatal("Failed to register routes", zap.Error(err))
	}

	// 4. Start Server
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed to start", zap.Error(err))
	}
}
