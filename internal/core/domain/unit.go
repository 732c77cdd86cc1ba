package domain

import (
	"fmt"
	"strings"
)

// Unit is the distance unit a search is expressed in.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "mi"
)

// MilesPerKm converts kilometers to miles when multiplied.
const MilesPerKm = 0.621371

// ParseUnit accepts "km", "kilometers", "mi", "miles" (any case).
// An empty string means kilometers.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "km", "kilometers", "kilometres":
		return Kilometers, nil
	case "mi", "miles":
		return Miles, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// Valid reports whether u is a known unit. The zero value counts as kilometers.
func (u Unit) Valid() bool {
	return u == "" || u == Kilometers || u == Miles
}

// FromKm converts a kilometer value into u.
func (u Unit) FromKm(km float64) float64 {
	if u == Miles {
		return km * MilesPerKm
	}
	return km
}

// ToKm converts a value expressed in u into kilometers.
func (u Unit) ToKm(v float64) float64 {
	if u == Miles {
		return v / MilesPerKm
	}
	return v
}

func (u Unit) String() string {
	if u == "" {
		return string(Kilometers)
	}
	return string(u)
}
