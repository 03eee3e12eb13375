// Package geo holds the coordinate math used by the area queries. Spherical
// Earth of radius 6371 km; the error of a few hundred meters that comes with
// that approximation is acceptable for directory lookups.
package geo

import "math"

const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// points given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	// Spherical law of cosines; the argument can drift just past +/-1 from
	// floating-point rounding when the points coincide.
	c := math.Cos(rlat1)*math.Cos(rlat2)*math.Cos(dlon) + math.Sin(rlat1)*math.Sin(rlat2)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return EarthRadiusKm * math.Acos(c)
}

// WithinRadius reports whether the point lies within radiusKm of the center.
// A point exactly at the boundary distance is included.
func WithinRadius(lat, lon, centerLat, centerLon, radiusKm float64) bool {
	return Distance(lat, lon, centerLat, centerLon) <= radiusKm
}

// InRectangle reports whether the point lies in the axis-aligned box,
// inclusive on all edges. No great-circle correction is applied.
func InRectangle(lat, lon, latMin, latMax, lonMin, lonMax float64) bool {
	return lat >= latMin && lat <= latMax && lon >= lonMin && lon <= lonMax
}
