package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/aquadex/aquadex/internal/adapters/nats"
	"github.com/aquadex/aquadex/internal/adapters/postgres"
	"github.com/aquadex/aquadex/internal/adapters/valkey"
	"github.com/aquadex/aquadex/internal/core/ports"
	"github.com/aquadex/aquadex/internal/core/usecases"
	"github.com/aquadex/aquadex/internal/pkg/config"
	"github.com/aquadex/aquadex/internal/pkg/logging"
	"github.com/aquadex/aquadex/internal/workflows"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("aquadex-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 30*time.Second)

	var cachePort ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, imports will not invalidate cached searches", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}

	var eventsPort ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, imports will not be announced", "error", err)
	} else {
		defer pub.Close()
		eventsPort = pub
	}

	storeSvc := usecases.NewStoreService(postgres.NewStoreRepo(db), cachePort, eventsPort, usecases.SearchLimits{})

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.StoreImportWorkflow)
	w.RegisterActivity(&workflows.StoreImportActivities{Stores: storeSvc})

	slog.Info("importer worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
