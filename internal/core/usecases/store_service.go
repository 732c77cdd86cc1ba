package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/core/ports"
	"github.com/aquadex/aquadex/internal/pkg/geospatial"
	"github.com/aquadex/aquadex/internal/pkg/logging"
	"github.com/aquadex/aquadex/internal/pkg/metrics"
)

const cachePrefix = "stores:"

// MaxQueryLength caps text search queries, in characters.
const MaxQueryLength = 200

var tracer = otel.Tracer("github.com/aquadex/aquadex/internal/core/usecases")

// SearchLimits bounds what a single search may ask for.
// Zero fields fall back to the defaults below.
type SearchLimits struct {
	MaxRadiusKm  float64
	DefaultLimit int
	MaxLimit     int
	DefaultUnit  domain.Unit
}

func (l SearchLimits) withDefaults() SearchLimits {
	if l.MaxRadiusKm <= 0 {
		l.MaxRadiusKm = 500
	}
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = 50
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = 200
	}
	if l.DefaultLimit > l.MaxLimit {
		l.DefaultLimit = l.MaxLimit
	}
	if l.DefaultUnit == "" {
		l.DefaultUnit = domain.Kilometers
	}
	return l
}

// StoreService handles fish-store directory business logic.
type StoreService struct {
	stores ports.StoreRepository
	cache  ports.CacheService
	events ports.EventPublisher
	limits SearchLimits
	now    func() time.Time
}

// NewStoreService creates a new StoreService. cache and events may be nil.
func NewStoreService(stores ports.StoreRepository, cache ports.CacheService, events ports.EventPublisher, limits SearchLimits) *StoreService {
	return &StoreService{
		stores: stores,
		cache:  cache,
		events: events,
		limits: limits.withDefaults(),
		now:    time.Now,
	}
}

// Limits returns the effective search limits.
func (s *StoreService) Limits() SearchLimits {
	return s.limits
}

// FindNearby returns active stores within q.Radius of q.Center, nearest first.
func (s *StoreService) FindNearby(ctx context.Context, q domain.NearbyQuery) (_ []domain.RankedStore, err error) {
	ctx, span := tracer.Start(ctx, "StoreService.FindNearby")
	defer func() { endSpan(span, err) }()

	if q.Unit == "" {
		q.Unit = s.limits.DefaultUnit
	}
	if !q.Unit.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, q.Unit)
	}
	if !q.Center.Valid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, q.Center)
	}
	if math.IsNaN(q.Radius) || q.Radius <= 0 {
		return nil, fmt.Errorf("%w: must be positive", domain.ErrInvalidRadius)
	}
	radiusKm := q.Unit.ToKm(q.Radius)
	if radiusKm > s.limits.MaxRadiusKm {
		return nil, fmt.Errorf("%w: at most %.0f km", domain.ErrInvalidRadius, s.limits.MaxRadiusKm)
	}
	q.Limit = s.clampLimit(q.Limit)

	span.SetAttributes(
		attribute.Float64("search.lat", q.Center.Lat),
		attribute.Float64("search.lon", q.Center.Lon),
		attribute.Float64("search.radius_km", radiusKm),
		attribute.String("search.category", q.Category),
	)

	// Cached distances are measured from the center, so the key must not round it.
	cacheKey := fmt.Sprintf("%snearby:%s:%g:%s:%s:%d",
		cachePrefix, coordKey(q.Center), q.Radius, q.Unit, q.Category, q.Limit)
	var cached []domain.RankedStore
	if s.cacheGet(ctx, "nearby", cacheKey, &cached) {
		return cached, nil
	}

	box := geospatial.BoundingBox(q.Center, radiusKm)
	candidates, err := s.stores.List(ctx, domain.StoreFilter{
		Category:   q.Category,
		ActiveOnly: true,
		Bounds:     &box,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ranked, err := geospatial.Search(q.Center, q.Radius, q.Unit, candidates)
	if err != nil {
		return nil, err
	}
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}

	metrics.StoreSearches.WithLabelValues("nearby").Inc()
	metrics.SearchResults.WithLabelValues("nearby").Observe(float64(len(ranked)))
	logging.FromContext(ctx).Debug("nearby search",
		"candidates", len(candidates), "results", len(ranked), "radius_km", radiusKm)

	// Stores change rarely; 5 minutes is plenty.
	s.cacheSet(ctx, cacheKey, ranked, 300)
	return ranked, nil
}

// Search matches stores by name or city. When near is set, stores with a
// location come first ordered by distance, followed by the rest in match order.
func (s *StoreService) Search(ctx context.Context, query string, near *domain.Coordinate, unit domain.Unit, limit int) (_ []domain.Store, err error) {
	ctx, span := tracer.Start(ctx, "StoreService.Search")
	defer func() { endSpan(span, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: must not be empty", domain.ErrInvalidQuery)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: at most %d characters", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if near != nil && !near.Valid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, *near)
	}
	if unit == "" {
		unit = s.limits.DefaultUnit
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	limit = s.clampLimit(limit)

	cacheKey := fmt.Sprintf("%ssearch:%s:%d", cachePrefix, strings.ToLower(query), limit)
	if near != nil {
		cacheKey += ":" + coordKey(*near) + ":" + unit.String()
	}
	var cached []domain.Store
	if s.cacheGet(ctx, "search", cacheKey, &cached) {
		return cached, nil
	}

	stores, err := s.stores.List(ctx, domain.StoreFilter{Query: query, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("search stores: %w", err)
	}

	if near != nil {
		stores, err = orderByDistance(*near, unit, stores)
		if err != nil {
			return nil, err
		}
	}
	if len(stores) > limit {
		stores = stores[:limit]
	}
	if stores == nil {
		stores = []domain.Store{}
	}

	metrics.StoreSearches.WithLabelValues("text").Inc()
	metrics.SearchResults.WithLabelValues("text").Observe(float64(len(stores)))

	s.cacheSet(ctx, cacheKey, stores, 300)
	return stores, nil
}

// coordKey renders c exactly, so distinct points never share a cache entry.
func coordKey(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'g', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'g', -1, 64)
}

// orderByDistance puts located stores first, nearest first, then the
// unlocated ones in their original order.
func orderByDistance(origin domain.Coordinate, unit domain.Unit, stores []domain.Store) ([]domain.Store, error) {
	ranked, err := geospatial.Search(origin, unit.FromKm(geospatial.MaxDistanceKm), unit, stores)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Store, 0, len(stores))
	for _, r := range ranked {
		out = append(out, r.Store)
	}
	for _, st := range stores {
		if st.Location == nil || !st.Location.Valid() {
			out = append(out, st)
		}
	}
	return out, nil
}

// GetByID returns a single store.
func (s *StoreService) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	cacheKey := cachePrefix + "id:" + id
	var cached domain.Store
	if s.cacheGet(ctx, "id", cacheKey, &cached) {
		return &cached, nil
	}

	store, err := s.stores.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, store, 600) // 10 min for a single store
	return store, nil
}

// List returns one page of stores and the total number matching filter.
func (s *StoreService) List(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Limit = s.clampLimit(filter.Limit)

	total, err := s.stores.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count stores: %w", err)
	}
	stores, err := s.stores.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stores: %w", err)
	}
	return stores, total, nil
}

// Create validates and inserts a new store. An ID is generated when empty.
func (s *StoreService) Create(ctx context.Context, store *domain.Store) (*domain.Store, error) {
	if store.ID == "" {
		store.ID = uuid.NewString()
	}
	now := s.now().UTC()
	store.CreatedAt = now
	store.UpdatedAt = now
	if err := s.save(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// Update replaces an existing store.
func (s *StoreService) Update(ctx context.Context, id string, store *domain.Store) (*domain.Store, error) {
	existing, err := s.stores.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	store.ID = id
	store.CreatedAt = existing.CreatedAt
	store.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *StoreService) save(ctx context.Context, store *domain.Store) error {
	if err := ValidateStore(store); err != nil {
		return err
	}
	if store.Slug == "" {
		store.Slug = Slugify(store.Name)
	}
	if err := s.stores.Upsert(ctx, store); err != nil {
		return fmt.Errorf("upsert store: %w", err)
	}

	s.InvalidateSearchCache(ctx)
	s.publish(ctx, &domain.StoreEvent{
		Type:    domain.StoreUpserted,
		StoreID: store.ID,
		Store:   store,
		At:      s.now().UTC(),
	})
	return nil
}

// Delete removes a store.
func (s *StoreService) Delete(ctx context.Context, id string) error {
	if err := s.stores.Delete(ctx, id); err != nil {
		return err
	}
	s.InvalidateSearchCache(ctx)
	s.publish(ctx, &domain.StoreEvent{Type: domain.StoreDeleted, StoreID: id, At: s.now().UTC()})
	return nil
}

// Distance returns the great-circle distance between two points.
func (s *StoreService) Distance(a, b domain.Coordinate, unit domain.Unit) (float64, error) {
	if unit == "" {
		unit = s.limits.DefaultUnit
	}
	return geospatial.Distance(a, b, unit)
}

// InvalidateSearchCache drops every cached search and store lookup.
func (s *StoreService) InvalidateSearchCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", "error", err)
	}
}

func (s *StoreService) publish(ctx context.Context, event *domain.StoreEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStoreEvent(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish store event failed",
			"type", event.Type, "store_id", event.StoreID, "error", err)
		return
	}
	metrics.StoreEventsPublished.WithLabelValues(string(event.Type)).Inc()
}

func (s *StoreService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.limits.DefaultLimit
	}
	if limit > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return limit
}

// cacheGet decodes a cached value into dst and reports whether it was found.
func (s *StoreService) cacheGet(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *StoreService) cacheSet(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
