package domain

import "math"

// DefaultRadiusMeters applies when a site has no usable radius.
const DefaultRadiusMeters = 50.0

// PositionSource records where a GeoPoint came from.
type PositionSource string

const (
	PositionDeviceReported PositionSource = "device-reported"
	PositionFallbackToSite PositionSource = "fallback-to-site"
)

type GeoPoint struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Source    PositionSource `json:"source"`
}

// Valid reports whether the point is finite and inside the WGS84 ranges.
func (p GeoPoint) Valid() bool {
	return ValidCoordinates(p.Latitude, p.Longitude)
}

// ValidCoordinates checks latitude in [-90, 90] and longitude in [-180, 180].
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// AttendanceSite representa um local de registro de ponto.
type AttendanceSite struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// EffectiveRadius returns the admission radius, defaulting when unset or invalid.
func (s AttendanceSite) EffectiveRadius() float64 {
	r := s.RadiusMeters
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return DefaultRadiusMeters
	}
	return r
}

func (s AttendanceSite) HasCoordinates() bool {
	return ValidCoordinates(s.Latitude, s.Longitude)
}

// Point returns the site centre as a fallback position.
func (s AttendanceSite) Point() GeoPoint {
	return GeoPoint{Latitude: s.Latitude, Longitude: s.Longitude, Source: PositionFallbackToSite}
}
