package usecases

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/pkg/metrics"
)

// Rejection explains why a record was left out of an import.
type Rejection struct {
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Source   string      `json:"source"`
	Imported int         `json:"imported"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// ValidateStore checks the fields every persisted store must have.
// A missing location is allowed; an out-of-range one is not.
func ValidateStore(s *domain.Store) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidStore)
	}
	if s.Location != nil && !s.Location.Valid() {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, *s.Location)
	}
	return nil
}

// ValidateStores splits stores into those that can be imported and those
// that cannot. Valid stores get an ID and slug when missing.
func ValidateStores(stores []domain.Store) ([]domain.Store, []Rejection) {
	valid := make([]domain.Store, 0, len(stores))
	var rejected []Rejection
	for i := range stores {
		s := stores[i]
		if err := ValidateStore(&s); err != nil {
			rejected = append(rejected, Rejection{Index: i, Name: s.Name, Reason: err.Error()})
			continue
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Slug == "" {
			s.Slug = Slugify(s.Name)
		}
		valid = append(valid, s)
	}
	return valid, rejected
}

// SaveBatch upserts already validated stores.
func (s *StoreService) SaveBatch(ctx context.Context, stores []domain.Store) error {
	if len(stores) == 0 {
		return nil
	}
	now := s.now().UTC()
	for i := range stores {
		if stores[i].CreatedAt.IsZero() {
			stores[i].CreatedAt = now
		}
		stores[i].UpdatedAt = now
	}
	if err := s.stores.UpsertBatch(ctx, stores); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}

// AnnounceImport publishes a bulk-import event.
func (s *StoreService) AnnounceImport(ctx context.Context, source string, count int) {
	s.publish(ctx, &domain.StoreEvent{
		Type:   domain.StoreImported,
		Count:  count,
		Source: source,
		At:     s.now().UTC(),
	})
}

// Import validates, saves and announces a batch of stores in one call.
func (s *StoreService) Import(ctx context.Context, source string, stores []domain.Store) (*ImportReport, error) {
	valid, rejected := ValidateStores(stores)
	if err := s.SaveBatch(ctx, valid); err != nil {
		return nil, err
	}
	metrics.StoresImported.WithLabelValues(source).Add(float64(len(valid)))

	s.InvalidateSearchCache(ctx)
	s.AnnounceImport(ctx, source, len(valid))

	return &ImportReport{Source: source, Imported: len(valid), Rejected: rejected}, nil
}

// Slugify lower-cases name and joins its letters and digits with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
