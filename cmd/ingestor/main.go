package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	natsadapter "github.com/aquadex/aquadex/internal/adapters/nats"
	"github.com/aquadex/aquadex/internal/adapters/postgres"
	"github.com/aquadex/aquadex/internal/adapters/valkey"
	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/ports"
	"github.com/aquadex/aquadex/internal/core/usecases"
	"github.com/aquadex/aquadex/internal/pkg/config"
	"github.com/aquadex/aquadex/internal/pkg/logging"
	"github.com/aquadex/aquadex/internal/workflows"
)

func main() {
	direct := flag.Bool("direct", false, "upsert straight through the database instead of starting a workflow")
	wait := flag.Bool("wait", true, "wait for the import workflow to finish")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ingestor [-direct] [-wait=false] <manifest.json|stores.csv|url>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load("aquadex-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	src := "manifest.json"
	if flag.NArg() > 0 {
		src = flag.Arg(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 120 * time.Second}
	source, stores, err := load(ctx, httpClient, src)
	if err != nil {
		log.Fatalf("load %s: %v", src, err)
	}
	slog.Info("AquaDex store ingestor", "source", source, "records", len(stores), "direct", *direct)

	var report *usecases.ImportReport
	if *direct {
		report, err = importDirect(ctx, cfg, source, stores)
	} else {
		report, err = importViaWorkflow(ctx, cfg, source, stores, *wait)
	}
	if err != nil {
		slog.Error("import failed", "source", source, "error", err)
		os.Exit(1)
	}
	if report == nil {
		return
	}

	for _, r := range report.Rejected {
		slog.Warn("rejected", "index", r.Index, "name", r.Name, "reason", r.Reason)
	}
	slog.Info("ingestion complete", "imported", report.Imported, "rejected", len(report.Rejected))
}

func importDirect(ctx context.Context, cfg *config.Config, source string, stores []domain.Store) (*usecases.ImportReport, error) {
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var cachePort ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}
	var eventsPort ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		eventsPort = pub
	}

	svc := usecases.NewStoreService(postgres.NewStoreRepo(db), cachePort, eventsPort, usecases.SearchLimits{})
	return svc.Import(ctx, source, stores)
}

func importViaWorkflow(ctx context.Context, cfg *config.Config, source string, stores []domain.Store, wait bool) (*usecases.ImportReport, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID(source, time.Now()),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.StoreImportWorkflow, workflows.StoreImportInput{Source: source, Stores: stores})
	if err != nil {
		return nil, err
	}
	slog.Info("import workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	if !wait {
		return nil, nil
	}

	var report usecases.ImportReport
	if err := run.Get(ctx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
