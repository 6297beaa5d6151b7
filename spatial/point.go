// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial provides basic geographic types shared across the pipeline.
package spatial

import (
	"fmt"
	"math"
)

const earthRadius = 6371e3 // meters

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lon, p.Lat)
}

// Valid reports whether the point plausibly lies on the Korean peninsula.
// The facility providers occasionally emit raw projected values that slip
// through conversion; those land far outside this box.
func (p Point) Valid() bool {
	return p.Lat >= 33.0 && p.Lat <= 43.0 && p.Lon >= 124.0 && p.Lon <= 132.0
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLon := (other.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// WebMercatorToWGS84 converts EPSG:3857 meters to lon/lat degrees. The school
// facility provider reports coordinates in Web Mercator.
func WebMercatorToWGS84(x, y float64) (lon, lat float64) {
	lon = x / earthMercatorRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthMercatorRadius)) - math.Pi/2) * 180 / math.Pi

	return lon, lat
}

// Spherical radius used by the Web Mercator projection, not the mean Earth
// radius used for haversine distances.
const earthMercatorRadius = 6378137.0
