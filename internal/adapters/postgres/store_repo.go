package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aquadex/aquadex/internal/core/domain"
)

const storeColumns = `id, slug, name, COALESCE(address, ''), COALESCE(city, ''),
	COALESCE(region, ''), COALESCE(country, ''), COALESCE(phone, ''), COALESCE(website, ''),
	COALESCE(categories, '{}'), latitude, longitude, active, created_at, updated_at`

const upsertStoreSQL = `
	INSERT INTO stores (id, slug, name, address, city, region, country, phone, website,
	                    categories, latitude, longitude, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO UPDATE
	SET slug = EXCLUDED.slug, name = EXCLUDED.name, address = EXCLUDED.address,
	    city = EXCLUDED.city, region = EXCLUDED.region, country = EXCLUDED.country,
	    phone = EXCLUDED.phone, website = EXCLUDED.website, categories = EXCLUDED.categories,
	    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
	    active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
`

// StoreRepo implements ports.StoreRepository with pgx.
type StoreRepo struct {
	db *DB
}

// NewStoreRepo creates a new StoreRepo.
func NewStoreRepo(db *DB) *StoreRepo {
	return &StoreRepo{db: db}
}

func upsertArgs(s *domain.Store) []any {
	var lat, lon *float64
	if s.Location != nil {
		lat, lon = &s.Location.Lat, &s.Location.Lon
	}
	categories := s.Categories
	if categories == nil {
		categories = []string{}
	}
	return []any{
		s.ID, s.Slug, s.Name, s.Address, s.City, s.Region, s.Country, s.Phone, s.Website,
		categories, lat, lon, s.Active, s.CreatedAt, s.UpdatedAt,
	}
}

// Upsert inserts or updates a single store.
func (r *StoreRepo) Upsert(ctx context.Context, s *domain.Store) error {
	_, err := r.db.Pool.Exec(ctx, upsertStoreSQL, upsertArgs(s)...)
	return err
}

// UpsertBatch inserts many stores using pgx.Batch.
func (r *StoreRepo) UpsertBatch(ctx context.Context, stores []domain.Store) error {
	batch := &pgx.Batch{}
	for i := range stores {
		batch.Queue(upsertStoreSQL, upsertArgs(&stores[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a store by ID.
func (r *StoreRepo) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	s, err := scanStore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns stores matching filter ordered by name. The Bounds filter is a
// plain lat/lon range check; exact distance filtering happens in the caller.
func (r *StoreRepo) List(ctx context.Context, filter domain.StoreFilter) ([]domain.Store, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + storeColumns + ` FROM stores` + where + ` ORDER BY name, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := []domain.Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, *s)
	}
	return stores, rows.Err()
}

// Count returns the number of stores matching filter, ignoring Limit/Offset.
func (r *StoreRepo) Count(ctx context.Context, filter domain.StoreFilter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM stores`+where, args...).Scan(&n)
	return n, err
}

// Delete removes a store by ID.
func (r *StoreRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(f domain.StoreFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ActiveOnly {
		conds = append(conds, "active")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR city ILIKE %s)", p, p))
	}
	if f.Category != "" {
		conds = append(conds, fmt.Sprintf("%s = ANY(categories)", arg(f.Category)))
	}
	if b := f.Bounds; b != nil {
		conds = append(conds, fmt.Sprintf("latitude BETWEEN %s AND %s", arg(b.MinLat), arg(b.MaxLat)))
		conds = append(conds, fmt.Sprintf("longitude BETWEEN %s AND %s", arg(b.MinLon), arg(b.MaxLon)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanStore(row pgx.Row) (*domain.Store, error) {
	var s domain.Store
	var lat, lon *float64
	if err := row.Scan(
		&s.ID, &s.Slug, &s.Name, &s.Address, &s.City,
		&s.Region, &s.Country, &s.Phone, &s.Website,
		&s.Categories, &lat, &lon, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		s.Location = &domain.Coordinate{Lat: *lat, Lon: *lon}
	}
	return &s, nil
}
