package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/usecases"
)

// BatchSize caps how many stores go into a single UpsertStores call so
// activity payloads stay well below Temporal's blob size limit.
const BatchSize = 500

// StoreImportInput is the input for the import workflow.
type StoreImportInput struct {
	Source string
	Stores []domain.Store
}

// StoreImportWorkflow validates a batch of stores, upserts the valid ones in
// chunks, invalidates cached searches, and announces the import.
func StoreImportWorkflow(ctx workflow.Context, input StoreImportInput) (*usecases.ImportReport, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting store import", "source", input.Source, "records", len(input.Stores))

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Validate
	var validation ValidationResult
	if err := workflow.ExecuteActivity(ctx, "ValidateStores", input.Stores).Get(ctx, &validation); err != nil {
		return nil, err
	}
	report := &usecases.ImportReport{Source: input.Source, Rejected: validation.Rejected}
	if len(validation.Valid) == 0 {
		logger.Warn("Nothing to import", "rejected", len(validation.Rejected))
		return report, nil
	}

	// Step 2: Upsert in batches
	for start := 0; start < len(validation.Valid); start += BatchSize {
		end := start + BatchSize
		if end > len(validation.Valid) {
			end = len(validation.Valid)
		}
		var saved int
		err := workflow.ExecuteActivity(ctx, "UpsertStores", input.Source, validation.Valid[start:end]).Get(ctx, &saved)
		if err != nil {
			logger.Error("batch upsert failed", "offset", start, "error", err)
			return report, err
		}
		report.Imported += saved
	}

	// Step 3: Invalidate cached searches. Stale entries expire on their own,
	// so a failure here does not fail the import.
	if err := workflow.ExecuteActivity(ctx, "InvalidateSearchCache").Get(ctx, nil); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
	}

	// Step 4: Announce
	if err := workflow.ExecuteActivity(ctx, "PublishImported", input.Source, report.Imported).Get(ctx, nil); err != nil {
		logger.Warn("import announcement failed", "error", err)
	}

	logger.Info("Store import finished", "imported", report.Imported, "rejected", len(report.Rejected))
	return report, nil
}
