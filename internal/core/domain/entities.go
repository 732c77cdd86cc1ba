package domain

import (
	"time"
)

// Store is a local fish store listed in the directory.
type Store struct {
	ID         string      `json:"id"`
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	Address    string      `json:"address,omitempty"`
	City       string      `json:"city,omitempty"`
	Region     string      `json:"region,omitempty"`
	Country    string      `json:"country,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	Website    string      `json:"website,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Location   *Coordinate `json:"location,omitempty"` // nil when the store has no known location
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RankedStore is a store within a search radius, annotated with its distance.
type RankedStore struct {
	Store    Store   `json:"store"`
	Distance float64 `json:"distance"`
	Unit     Unit    `json:"unit"`
}

// StoreFilter narrows repository listings by non-geographic criteria and an
// optional bounding box.
type StoreFilter struct {
	Query      string
	Category   string
	ActiveOnly bool
	Bounds     *Bounds
	Limit      int
	Offset     int
}

// NearbyQuery describes a radius search around a point.
type NearbyQuery struct {
	Center   Coordinate
	Radius   float64
	Unit     Unit
	Category string
	Limit    int
}

// StoreEventType identifies what happened to a store.
type StoreEventType string

const (
	StoreUpserted StoreEventType = "upserted"
	StoreDeleted  StoreEventType = "deleted"
	StoreImported StoreEventType = "imported"
)

// StoreEvent is published whenever the directory changes.
type StoreEvent struct {
	Type    StoreEventType `json:"type"`
	StoreID string         `json:"store_id,omitempty"`
	Store   *Store         `json:"store,omitempty"`
	Count   int            `json:"count,omitempty"` // number of stores for bulk imports
	Source  string         `json:"source,omitempty"`
	At      time.Time      `json:"at"`
}
