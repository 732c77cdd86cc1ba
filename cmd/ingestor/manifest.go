package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// Manifest is a JSON list of stores to import.
type Manifest struct {
	Source string        `json:"source"`
	Stores []StoreRecord `json:"stores"`
}

// StoreRecord is one store as it appears in a manifest.
type StoreRecord struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	Region     string   `json:"region"`
	Country    string   `json:"country"`
	Phone      string   `json:"phone"`
	Website    string   `json:"website"`
	Categories []string `json:"categories"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Active     *bool    `json:"active"`
}

func (r StoreRecord) toStore() domain.Store {
	s := domain.Store{
		ID:         strings.TrimSpace(r.ID),
		Name:       strings.TrimSpace(r.Name),
		Address:    r.Address,
		City:       r.City,
		Region:     r.Region,
		Country:    r.Country,
		Phone:      r.Phone,
		Website:    r.Website,
		Categories: r.Categories,
		Active:     r.Active == nil || *r.Active,
	}
	// Records without both coordinates have no known location.
	if r.Lat != nil && r.Lon != nil {
		s.Location = &domain.Coordinate{Lat: *r.Lat, Lon: *r.Lon}
	}
	return s
}

// load reads stores from a local file or an http(s) URL. Files ending in
// .csv are parsed as CSV, anything else as a JSON manifest.
func load(ctx context.Context, client *http.Client, src string) (string, []domain.Store, error) {
	var r io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return "", nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", nil, fmt.Errorf("download: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
		}
		r = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return "", nil, err
		}
		r = f
	}
	defer r.Close()

	source := path.Base(src)
	if strings.HasSuffix(strings.ToLower(src), ".csv") {
		stores, err := parseCSV(r)
		return source, stores, err
	}

	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return "", nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Source != "" {
		source = m.Source
	}
	stores := make([]domain.Store, 0, len(m.Stores))
	for _, rec := range m.Stores {
		stores = append(stores, rec.toStore())
	}
	return source, stores, nil
}

// parseCSV reads stores from a CSV with a header row. Recognised columns:
// id, name, address, city, region, country, phone, website, categories
// (semicolon separated), lat, lon, active.
func parseCSV(r io.Reader) ([]domain.Store, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("csv header has no name column")
	}

	var stores []domain.Store
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := StoreRecord{
			ID:      getField(record, cols, "id"),
			Name:    getField(record, cols, "name"),
			Address: getField(record, cols, "address"),
			City:    getField(record, cols, "city"),
			Region:  getField(record, cols, "region"),
			Country: getField(record, cols, "country"),
			Phone:   getField(record, cols, "phone"),
			Website: getField(record, cols, "website"),
		}
		if cats := getField(record, cols, "categories"); cats != "" {
			for _, c := range strings.Split(cats, ";") {
				if c = strings.TrimSpace(c); c != "" {
					rec.Categories = append(rec.Categories, c)
				}
			}
		}
		if lat, lon := getField(record, cols, "lat"), getField(record, cols, "lon"); lat != "" && lon != "" {
			la, err := strconv.ParseFloat(lat, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: lat: %w", line, err)
			}
			lo, err := strconv.ParseFloat(lon, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: lon: %w", line, err)
			}
			rec.Lat, rec.Lon = &la, &lo
		}
		if active := getField(record, cols, "active"); active != "" {
			b, err := strconv.ParseBool(active)
			if err != nil {
				return nil, fmt.Errorf("line %d: active: %w", line, err)
			}
			rec.Active = &b
		}
		stores = append(stores, rec.toStore())
	}
	return stores, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 BOM from the first column.
		h = strings.TrimPrefix(h, "\ufeff")
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// workflowID names an import run so repeated runs stay distinguishable.
func workflowID(source string, at time.Time) string {
	return fmt.Sprintf("store-import-%s-%d", source, at.Unix())
}
