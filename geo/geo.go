// Package geo computes great-circle distances between coordinates using the
// haversine formula over a spherical earth approximation.
package geo

import (
	"math"

	"github.com/Rahul-7375/attendance-cist/models"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b models.Location) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Within reports whether a and b are at most maxMeters apart. The boundary
// itself counts as within.
func Within(a, b models.Location, maxMeters float64) bool {
	return DistanceMeters(a, b) <= maxMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
