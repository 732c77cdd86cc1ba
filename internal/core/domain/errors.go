package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRadius is returned for a non-positive search radius.
	ErrInvalidRadius = errors.New("invalid radius")
	ErrInvalidUnit   = errors.New("invalid unit")
	ErrInvalidStore  = errors.New("invalid store")
	// ErrInvalidQuery is returned for an empty or oversized text search.
	ErrInvalidQuery = errors.New("invalid query")
	ErrNotFound     = errors.New("not found")
)
