package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/aquadex/aquadex/internal/adapters/http"
	natsadapter "github.com/aquadex/aquadex/internal/adapters/nats"
	"github.com/aquadex/aquadex/internal/adapters/postgres"
	"github.com/aquadex/aquadex/internal/adapters/valkey"
	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/ports"
	"github.com/aquadex/aquadex/internal/core/usecases"
	"github.com/aquadex/aquadex/internal/pkg/config"
	"github.com/aquadex/aquadex/internal/pkg/logging"
	"github.com/aquadex/aquadex/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load("aquadex-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache. Interfaces stay nil unless the adapter is up.
	var cachePort ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}

	// NATS
	var eventsPort ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		eventsPort = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Use cases
	storeSvc := usecases.NewStoreService(postgres.NewStoreRepo(db), cachePort, eventsPort, usecases.SearchLimits{
		MaxRadiusKm:  cfg.Search.MaxRadiusKm,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		DefaultUnit:  cfg.Search.Unit(),
	})

	// Writes on other replicas (and imports) invalidate our cached searches.
	if cachePort != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "")
		if err != nil {
			slog.Warn("store event subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeStoreEvents(ctx, func(ctx context.Context, event *domain.StoreEvent) error {
				storeSvc.InvalidateSearchCache(ctx)
				slog.Debug("search cache invalidated", "event", event.Type, "store_id", event.StoreID)
				return nil
			})
			if err != nil {
				slog.Warn("subscribe store events failed", "error", err)
			}
		}
	}

	deps := &http.Dependencies{
		Stores: storeSvc,
		NATS:   natsConn,
		DB:     db,
		Cache:  cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "AquaDex API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.aquadex.app",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
