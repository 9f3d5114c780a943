// Package geo holds the geometry used to rank places: great-circle distance
// and H3 cell snapping.
package geo

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

const EarthRadiusMeters = 6371e3

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b model.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoundMeters rounds to the nearest 10 m, halves away from zero.
func RoundMeters(m float64) int {
	return int(math.Round(m/10) * 10)
}

// SnapToCell maps c onto the centre of its H3 cell at res.
func SnapToCell(c model.Coordinate, res int) (model.Coordinate, string, error) {
	if res < 0 || res > 15 {
		return model.Coordinate{}, "", fmt.Errorf("h3 resolution %d out of range [0,15]", res)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lng), res)
	if err != nil {
		return model.Coordinate{}, "", fmt.Errorf("h3 cell for %s: %w", c, err)
	}
	centre, err := h3.CellToLatLng(cell)
	if err != nil {
		return model.Coordinate{}, "", fmt.Errorf("h3 centre of %s: %w", cell, err)
	}
	return model.Coordinate{Lat: centre.Lat, Lng: centre.Lng}, cell.String(), nil
}
