package geo

import "math"

const earthRadiusKm = 6371.0 // Earth's radius in kilometers

// DistanceKm calculates the great-circle distance between two GPS coordinates
// in kilometers using the Haversine formula.
//
// Any non-finite coordinate (NaN or Inf) yields +Inf so that callers can rank
// an unknown distance as the worst possible candidate without special-casing.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	if !IsFinite(lat1) || !IsFinite(lng1) || !IsFinite(lat2) || !IsFinite(lng2) {
		return math.Inf(1)
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	// Haversine formula
	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// IsFinite reports whether v is a usable coordinate value.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
