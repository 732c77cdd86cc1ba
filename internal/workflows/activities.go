package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/usecases"
	"github.com/aquadex/aquadex/internal/pkg/metrics"
)

// ValidationResult is what ValidateStores hands back to the workflow.
type ValidationResult struct {
	Valid    []domain.Store        `json:"valid"`
	Rejected []usecases.Rejection `json:"rejected,omitempty"`
}

// StoreImportActivities holds the activity implementations for the import workflow.
type StoreImportActivities struct {
	Stores *usecases.StoreService
}

// ValidateStores drops records that cannot be stored and fills in IDs and slugs.
func (a *StoreImportActivities) ValidateStores(ctx context.Context, stores []domain.Store) (*ValidationResult, error) {
	valid, rejected := usecases.ValidateStores(stores)
	for _, r := range rejected {
		slog.WarnContext(ctx, "store rejected", "index", r.Index, "name", r.Name, "reason", r.Reason)
	}
	return &ValidationResult{Valid: valid, Rejected: rejected}, nil
}

// UpsertStores writes one batch of validated stores and returns how many were saved.
func (a *StoreImportActivities) UpsertStores(ctx context.Context, source string, stores []domain.Store) (int, error) {
	if err := a.Stores.SaveBatch(ctx, stores); err != nil {
		return 0, fmt.Errorf("save %d stores: %w", len(stores), err)
	}
	metrics.StoresImported.WithLabelValues(source).Add(float64(len(stores)))
	return len(stores), nil
}

// InvalidateSearchCache drops cached searches so imported stores show up.
func (a *StoreImportActivities) InvalidateSearchCache(ctx context.Context) error {
	a.Stores.InvalidateSearchCache(ctx)
	return nil
}

// PublishImported announces a finished import.
func (a *StoreImportActivities) PublishImported(ctx context.Context, source string, count int) error {
	a.Stores.AnnounceImport(ctx, source, count)
	slog.InfoContext(ctx, "store import announced", "source", source, "count", count)
	return nil
}
