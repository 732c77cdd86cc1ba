package ports

import (
	"context"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// StoreRepository persists fish stores.
type StoreRepository interface {
	Upsert(ctx context.Context, store *domain.Store) error
	UpsertBatch(ctx context.Context, stores []domain.Store) error
	GetByID(ctx context.Context, id string) (*domain.Store, error)
	// List returns stores matching filter. A Bounds filter only prefilters:
	// callers are expected to apply exact distance checks themselves.
	List(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error)
	Count(ctx context.Context, filter domain.StoreFilter) (int, error)
	Delete(ctx context.Context, id string) error
}
