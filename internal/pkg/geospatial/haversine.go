package geospatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/aquadex/aquadex/internal/core/domain"
)

const earthRadiusKm = 6371.0

// MaxDistanceKm is the largest possible great-circle distance (half the
// circumference).
const MaxDistanceKm = math.Pi * earthRadiusKm

// Haversine calculates the great-circle distance in kilometers between two points.
// Inputs are not validated.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a just past 1 for antipodal points
	a = math.Min(a, 1)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Distance returns the great-circle distance between a and b in unit.
func Distance(a, b domain.Coordinate, unit domain.Unit) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, a)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, b)
	}
	if !unit.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	return unit.FromKm(Haversine(a.Lat, a.Lon, b.Lat, b.Lon)), nil
}

// Search keeps the candidates within radius (inclusive) of query and orders
// them nearest-first. Equal distances keep their input order. Candidates
// without a location, or with an out-of-range one, are skipped.
// The returned slice is never nil.
func Search(query domain.Coordinate, radius float64, unit domain.Unit, candidates []domain.Store) ([]domain.RankedStore, error) {
	if !query.Valid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinate, query)
	}
	if math.IsNaN(radius) || radius <= 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRadius, radius)
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	if unit == "" {
		unit = domain.Kilometers
	}

	results := make([]domain.RankedStore, 0, len(candidates))
	for _, s := range candidates {
		if s.Location == nil || !s.Location.Valid() {
			continue
		}
		d := unit.FromKm(Haversine(query.Lat, query.Lon, s.Location.Lat, s.Location.Lon))
		if d > radius {
			continue
		}
		results = append(results, domain.RankedStore{Store: s, Distance: d, Unit: unit})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}

// BoundingBox returns a box around center that contains every point within
// radiusKm. Boxes reaching a pole or crossing the antimeridian span all
// longitudes.
func BoundingBox(center domain.Coordinate, radiusKm float64) domain.Bounds {
	angular := radiusKm / earthRadiusKm
	latDelta := toDeg(angular)
	minLat := center.Lat - latDelta
	maxLat := center.Lat + latDelta

	full := domain.Bounds{
		MinLat: math.Max(minLat, -90),
		MinLon: -180,
		MaxLat: math.Min(maxLat, 90),
		MaxLon: 180,
	}
	if minLat <= -90 || maxLat >= 90 {
		return full
	}

	ratio := math.Sin(angular) / math.Cos(toRad(center.Lat))
	if angular >= math.Pi/2 || ratio >= 1 {
		return full
	}
	lonDelta := toDeg(math.Asin(ratio))
	minLon := center.Lon - lonDelta
	maxLon := center.Lon + lonDelta
	if minLon < -180 || maxLon > 180 {
		return full
	}

	return domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
