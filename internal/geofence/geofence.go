// Package geofence admits claimed positions against attendance sites.
package geofence

import (
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

type Admission struct {
	DistanceMeters float64               `json:"distance_meters"`
	RadiusMeters   float64               `json:"radius_meters"`
	Accepted       bool                  `json:"accepted"`
	Degraded       bool                  `json:"gps_bypassed"`
	Source         domain.PositionSource `json:"source"`
	Position       domain.GeoPoint       `json:"position"`
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b domain.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Admit accepts the claimed point when it lies within the site's effective
// radius, boundary included. Unusable coordinates on either side are rejected.
func Admit(claimed domain.GeoPoint, site domain.AttendanceSite) Admission {
	adm := Admission{
		DistanceMeters: math.Inf(1),
		RadiusMeters:   site.EffectiveRadius(),
		Degraded:       claimed.Source == domain.PositionFallbackToSite,
		Source:         claimed.Source,
		Position:       claimed,
	}

	if !claimed.Valid() || !site.HasCoordinates() {
		return adm
	}

	adm.DistanceMeters = Distance(claimed, domain.GeoPoint{Latitude: site.Latitude, Longitude: site.Longitude})
	adm.Accepted = adm.DistanceMeters <= adm.RadiusMeters
	return adm
}
