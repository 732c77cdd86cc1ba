package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/usecases"
)

// --- Mock StoreRepository ---

type mockStoreRepo struct {
	upsertFn      func(ctx context.Context, s *domain.Store) error
	upsertBatchFn func(ctx context.Context, stores []domain.Store) error
	getByIDFn     func(ctx context.Context, id string) (*domain.Store, error)
	listFn        func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error)
	countFn       func(ctx context.Context, filter domain.StoreFilter) (int, error)
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockStoreRepo) Upsert(ctx context.Context, s *domain.Store) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return nil
}

func (m *mockStoreRepo) UpsertBatch(ctx context.Context, stores []domain.Store) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, stores)
	}
	return nil
}

func (m *mockStoreRepo) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
}

func (m *mockStoreRepo) List(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockStoreRepo) Count(ctx context.Context, filter domain.StoreFilter) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, filter)
	}
	return 0, nil
}

func (m *mockStoreRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- In-memory cache ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// --- Recording publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.StoreEvent
	err    error
}

func (p *recordingPublisher) PublishStoreEvent(ctx context.Context, event *domain.StoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// --- Fixtures ---

var (
	sanFrancisco = domain.Coordinate{Lat: 37.7749, Lon: -122.4194}
	oakland      = domain.Coordinate{Lat: 37.8044, Lon: -122.2712}
	losAngeles   = domain.Coordinate{Lat: 34.0522, Lon: -118.2437}
)

func fixtureStores() []domain.Store {
	sf, oak, la := sanFrancisco, oakland, losAngeles
	return []domain.Store{
		{ID: "la", Name: "Reef Kingdom", Location: &la, Active: true},
		{ID: "oak", Name: "Oakland Aquatics", Location: &oak, Active: true},
		{ID: "sf", Name: "Mission Fish Room", Location: &sf, Active: true},
		{ID: "mail", Name: "Mail Order Shrimp", Active: true},
	}
}

// --- Tests ---

func TestStoreService_FindNearby(t *testing.T) {
	var gotFilter domain.StoreFilter
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			gotFilter = filter
			return fixtureStores(), nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	results, err := svc.FindNearby(context.Background(), domain.NearbyQuery{
		Center:   sanFrancisco,
		Radius:   20,
		Category: "saltwater",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(results))
	}
	if results[0].Store.ID != "sf" || results[1].Store.ID != "oak" {
		t.Errorf("expected sf then oak, got %s then %s", results[0].Store.ID, results[1].Store.ID)
	}
	if results[0].Unit != domain.Kilometers {
		t.Errorf("expected default unit km, got %s", results[0].Unit)
	}

	if !gotFilter.ActiveOnly {
		t.Error("expected active-only candidate query")
	}
	if gotFilter.Category != "saltwater" {
		t.Errorf("expected category passed through, got %q", gotFilter.Category)
	}
	if gotFilter.Bounds == nil || !gotFilter.Bounds.Contains(oakland) || gotFilter.Bounds.Contains(losAngeles) {
		t.Errorf("unexpected bounding box: %+v", gotFilter.Bounds)
	}
}

func TestStoreService_FindNearby_ClampLimit(t *testing.T) {
	many := make([]domain.Store, 300)
	for i := range many {
		loc := domain.Coordinate{Lat: 37.7749, Lon: -122.4194 + float64(i)*0.0001}
		many[i] = domain.Store{ID: fmt.Sprintf("s%d", i), Name: "Store", Location: &loc}
	}
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) { return many, nil },
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	results, err := svc.FindNearby(context.Background(), domain.NearbyQuery{Center: sanFrancisco, Radius: 50, Limit: 999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 200 {
		t.Errorf("expected limit clamped to 200, got %d", len(results))
	}

	results, _ = svc.FindNearby(context.Background(), domain.NearbyQuery{Center: sanFrancisco, Radius: 50})
	if len(results) != 50 {
		t.Errorf("expected default limit 50, got %d", len(results))
	}
	if results[0].Store.ID != "s0" {
		t.Errorf("expected nearest store first, got %s", results[0].Store.ID)
	}
}

func TestStoreService_FindNearby_Validation(t *testing.T) {
	called := false
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			called = true
			return nil, nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{MaxRadiusKm: 100})

	tests := []struct {
		name  string
		query domain.NearbyQuery
		want  error
	}{
		{"latitude out of range", domain.NearbyQuery{Center: domain.Coordinate{Lat: 90.1}, Radius: 1}, domain.ErrInvalidCoordinate},
		{"longitude out of range", domain.NearbyQuery{Center: domain.Coordinate{Lon: 181}, Radius: 1}, domain.ErrInvalidCoordinate},
		{"zero radius", domain.NearbyQuery{Center: sanFrancisco}, domain.ErrInvalidRadius},
		{"negative radius", domain.NearbyQuery{Center: sanFrancisco, Radius: -3}, domain.ErrInvalidRadius},
		{"beyond max radius", domain.NearbyQuery{Center: sanFrancisco, Radius: 101}, domain.ErrInvalidRadius},
		{"beyond max radius in miles", domain.NearbyQuery{Center: sanFrancisco, Radius: 63, Unit: domain.Miles}, domain.ErrInvalidRadius},
		{"unknown unit", domain.NearbyQuery{Center: sanFrancisco, Radius: 5, Unit: domain.Unit("leagues")}, domain.ErrInvalidUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FindNearby(context.Background(), tt.query)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if called {
		t.Error("repository must not be queried for invalid input")
	}
}

func TestStoreService_FindNearby_RepositoryError(t *testing.T) {
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			return nil, errors.New("db down")
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	if _, err := svc.FindNearby(context.Background(), domain.NearbyQuery{Center: sanFrancisco, Radius: 5}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStoreService_FindNearby_Cached(t *testing.T) {
	calls := 0
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			calls++
			return fixtureStores(), nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewStoreService(repo, cache, nil, usecases.SearchLimits{})
	q := domain.NearbyQuery{Center: sanFrancisco, Radius: 20}

	first, err := svc.FindNearby(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.FindNearby(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 repository call, got %d", calls)
	}
	if len(second) != len(first) || second[1].Store.ID != first[1].Store.ID {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}

	// A write drops cached searches.
	if _, err := svc.Create(context.Background(), &domain.Store{Name: "New Store"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if cache.len() != 0 {
		t.Errorf("expected cache to be invalidated, %d keys remain", cache.len())
	}
	_, _ = svc.FindNearby(context.Background(), q)
	if calls != 2 {
		t.Errorf("expected repository to be queried again after invalidation, got %d calls", calls)
	}
}

// Two centers that agree to four decimals must not share cached results:
// the edge store is inside 1 km of the first and just outside from the second.
func TestStoreService_FindNearby_CacheKeyUsesExactCenter(t *testing.T) {
	edge := domain.Coordinate{Lat: 37.7659157, Lon: -122.4194}
	calls := 0
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			calls++
			return []domain.Store{{ID: "edge", Location: &edge, Active: true}}, nil
		},
	}
	svc := usecases.NewStoreService(repo, newMemCache(), nil, usecases.SearchLimits{})

	first, err := svc.FindNearby(context.Background(), domain.NearbyQuery{
		Center: domain.Coordinate{Lat: 37.77490, Lon: -122.4194},
		Radius: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected edge store within 1 km of the first center, got %d results", len(first))
	}

	second, err := svc.FindNearby(context.Background(), domain.NearbyQuery{
		Center: domain.Coordinate{Lat: 37.77494, Lon: -122.4194},
		Radius: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected a fresh repository query for the second center, got %d calls", calls)
	}
	for _, r := range second {
		if r.Distance > 1 {
			t.Errorf("store %s returned at %.5f km on a 1 km search", r.Store.ID, r.Distance)
		}
	}
	if len(second) != 0 {
		t.Errorf("expected no stores within 1 km of the second center, got %d", len(second))
	}
}

func TestStoreService_Search_EmptyQuery(t *testing.T) {
	svc := usecases.NewStoreService(&mockStoreRepo{}, nil, nil, usecases.SearchLimits{})
	if _, err := svc.Search(context.Background(), "  ", nil, "", 10); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestStoreService_Search_QueryTooLong(t *testing.T) {
	called := false
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			called = true
			return nil, nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	if _, err := svc.Search(context.Background(), strings.Repeat("a", 201), nil, "", 10); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if called {
		t.Error("repository must not be queried for an oversized query")
	}

	// The cap counts characters, not bytes.
	if _, err := svc.Search(context.Background(), strings.Repeat("é", 200), nil, "", 10); err != nil {
		t.Errorf("expected 200 two-byte characters to be accepted, got %v", err)
	}
}

func TestStoreService_Search_TextOrder(t *testing.T) {
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			if filter.Query != "fish" {
				t.Errorf("expected query 'fish', got '%s'", filter.Query)
			}
			return fixtureStores(), nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	stores, err := svc.Search(context.Background(), " fish ", nil, "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stores) != 3 || stores[0].ID != "la" {
		t.Errorf("expected repository order truncated to 3, got %+v", stores)
	}
}

func TestStoreService_Search_NearRanksByDistance(t *testing.T) {
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			return fixtureStores(), nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	near := losAngeles
	stores, err := svc.Search(context.Background(), "fish", &near, domain.Miles, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"la", "oak", "sf", "mail"}
	if len(stores) != len(want) {
		t.Fatalf("expected %d stores, got %d", len(want), len(stores))
	}
	for i, id := range want {
		if stores[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, stores[i].ID)
		}
	}

	bad := domain.Coordinate{Lat: 100}
	if _, err := svc.Search(context.Background(), "fish", &bad, "", 10); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestStoreService_Create(t *testing.T) {
	var saved *domain.Store
	repo := &mockStoreRepo{
		upsertFn: func(ctx context.Context, s *domain.Store) error {
			saved = s
			return nil
		},
	}
	pub := &recordingPublisher{}
	svc := usecases.NewStoreService(repo, nil, pub, usecases.SearchLimits{})

	store, err := svc.Create(context.Background(), &domain.Store{Name: "Coral Café & Fish"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved != store {
		t.Error("expected the returned store to be the persisted one")
	}
	if store.ID == "" {
		t.Error("expected generated ID")
	}
	if store.Slug != "coral-café-fish" {
		t.Errorf("unexpected slug %q", store.Slug)
	}
	if store.CreatedAt.IsZero() || !store.CreatedAt.Equal(store.UpdatedAt) {
		t.Errorf("unexpected timestamps: %v / %v", store.CreatedAt, store.UpdatedAt)
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.StoreUpserted || pub.events[0].StoreID != store.ID {
		t.Errorf("unexpected events: %+v", pub.events)
	}
}

func TestStoreService_Create_Invalid(t *testing.T) {
	pub := &recordingPublisher{}
	repo := &mockStoreRepo{
		upsertFn: func(ctx context.Context, s *domain.Store) error {
			t.Error("invalid store must not be persisted")
			return nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, pub, usecases.SearchLimits{})

	if _, err := svc.Create(context.Background(), &domain.Store{Name: " "}); !errors.Is(err, domain.ErrInvalidStore) {
		t.Errorf("expected ErrInvalidStore, got %v", err)
	}
	bad := domain.Coordinate{Lat: 10, Lon: 200}
	if _, err := svc.Create(context.Background(), &domain.Store{Name: "Bad Pin", Location: &bad}); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected no events, got %d", len(pub.events))
	}
}

func TestStoreService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc := usecases.NewStoreService(&mockStoreRepo{}, nil, pub, usecases.SearchLimits{})

	if _, err := svc.Create(context.Background(), &domain.Store{Name: "Still Saved"}); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestStoreService_Update(t *testing.T) {
	created := fixtureStores()[0]
	repo := &mockStoreRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Store, error) {
			s := created
			s.CreatedAt = s.CreatedAt.AddDate(-1, 0, 0)
			return &s, nil
		},
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	updated, err := svc.Update(context.Background(), "la", &domain.Store{ID: "ignored", Name: "Reef Kingdom LA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != "la" {
		t.Errorf("expected path ID to win, got %s", updated.ID)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("expected CreatedAt to be kept from the existing record")
	}

	if _, err := usecases.NewStoreService(&mockStoreRepo{}, nil, nil, usecases.SearchLimits{}).
		Update(context.Background(), "missing", &domain.Store{Name: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreService_Delete(t *testing.T) {
	pub := &recordingPublisher{}
	cache := newMemCache()
	_ = cache.Set(context.Background(), "stores:id:sf", []byte(`{}`), 60)
	_ = cache.Set(context.Background(), "unrelated", []byte(`{}`), 60)
	svc := usecases.NewStoreService(&mockStoreRepo{}, cache, pub, usecases.SearchLimits{})

	if err := svc.Delete(context.Background(), "sf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.len() != 1 {
		t.Errorf("expected only the unrelated key to survive, got %d keys", cache.len())
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.StoreDeleted {
		t.Errorf("unexpected events: %+v", pub.events)
	}
}

func TestStoreService_GetByID_Cached(t *testing.T) {
	calls := 0
	repo := &mockStoreRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Store, error) {
			calls++
			return &domain.Store{ID: id, Name: "Mission Fish Room"}, nil
		},
	}
	svc := usecases.NewStoreService(repo, newMemCache(), nil, usecases.SearchLimits{})

	for i := 0; i < 3; i++ {
		s, err := svc.GetByID(context.Background(), "sf")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Name != "Mission Fish Room" {
			t.Errorf("unexpected store %+v", s)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repository call, got %d", calls)
	}
}

func TestStoreService_List(t *testing.T) {
	var gotFilter domain.StoreFilter
	repo := &mockStoreRepo{
		listFn: func(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
			gotFilter = filter
			return fixtureStores(), nil
		},
		countFn: func(ctx context.Context, filter domain.StoreFilter) (int, error) { return 42, nil },
	}
	svc := usecases.NewStoreService(repo, nil, nil, usecases.SearchLimits{})

	stores, total, err := svc.List(context.Background(), domain.StoreFilter{Offset: -4, Limit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 || len(stores) != 4 {
		t.Errorf("unexpected result: total=%d len=%d", total, len(stores))
	}
	if gotFilter.Offset != 0 || gotFilter.Limit != 200 {
		t.Errorf("expected clamped filter, got %+v", gotFilter)
	}
}

func TestStoreService_Distance(t *testing.T) {
	svc := usecases.NewStoreService(&mockStoreRepo{}, nil, nil, usecases.SearchLimits{DefaultUnit: domain.Miles})

	d, err := svc.Distance(sanFrancisco, losAngeles, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 335 || d > 360 {
		t.Errorf("expected about 347 mi with the configured default unit, got %f", d)
	}
}
