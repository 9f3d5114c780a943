// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strconv"
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Canonical returns "lat,lng" in the shortest exact decimal form, so equal
// coordinates always render identically.
func (c Coordinate) Canonical() string {
	return formatDegrees(c.Lat) + "," + formatDegrees(c.Lng)
}

func formatDegrees(v float64) string {
	if v == 0 {
		v = 0 // -0 compares equal to 0 but formats as "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lng)
}

// Location is the JSON shape of a coordinate in responses.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l Location) Coordinate() Coordinate {
	return Coordinate{Lat: l.Lat, Lng: l.Lng}
}

// PlaceResult is one enriched restaurant returned to clients.
type PlaceResult struct {
	PlaceID    string   `json:"place_id"`
	Name       string   `json:"name"`
	Vicinity   string   `json:"vicinity"`
	Rating     *float64 `json:"rating"`
	Location   Location `json:"location"`
	Distance   int      `json:"distance"`
	Photo      *string  `json:"photo"`
	Directions string   `json:"directions"`
}

// RatingOrZero treats a missing rating as 0.
func (p PlaceResult) RatingOrZero() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}
