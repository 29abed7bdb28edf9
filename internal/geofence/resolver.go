package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

var (
	ErrLocatorUnavailable = errors.New("device position unavailable")
	ErrPermissionDenied   = errors.New("device position permission denied")
)

// Locator produces the device-reported position.
type Locator interface {
	Locate(ctx context.Context) (domain.GeoPoint, error)
}

// Reported is a position the client sent along with its request. A client
// that could not read its sensor sends the failure in Error instead.
type Reported struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (r Reported) Locate(_ context.Context) (domain.GeoPoint, error) {
	switch r.Error {
	case "":
	case "permission_denied":
		return domain.GeoPoint{}, ErrPermissionDenied
	default:
		return domain.GeoPoint{}, fmt.Errorf("%w: %s", ErrLocatorUnavailable, r.Error)
	}

	if r.Latitude == nil || r.Longitude == nil {
		return domain.GeoPoint{}, ErrLocatorUnavailable
	}

	p := domain.GeoPoint{Latitude: *r.Latitude, Longitude: *r.Longitude, Source: domain.PositionDeviceReported}
	if !p.Valid() {
		return domain.GeoPoint{}, domain.ErrInvalidCoordinates
	}
	return p, nil
}

// Resolver turns a Locator into a position, falling back to the site centre
// when the device cannot report one.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the device position, or the site centre tagged
// fallback-to-site when the device fails. Invalid device coordinates are
// not replaced by the fallback.
func (r *Resolver) Resolve(ctx context.Context, site domain.AttendanceSite, loc Locator) (domain.GeoPoint, error) {
	if loc != nil {
		p, err := loc.Locate(ctx)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, domain.ErrInvalidCoordinates) {
			return domain.GeoPoint{}, err
		}
		if ctx.Err() != nil {
			return domain.GeoPoint{}, ctx.Err()
		}

		r.logger.Warn("device position unavailable, using site coordinates",
			"site_id", site.ID,
			"error", err,
		)
	}

	if !site.HasCoordinates() {
		return domain.GeoPoint{}, domain.ErrPositionUnavailable
	}

	return site.Point(), nil
}

// Check resolves the position and admits it against the site.
func (r *Resolver) Check(ctx context.Context, site domain.AttendanceSite, loc Locator) (Admission, error) {
	p, err := r.Resolve(ctx, site, loc)
	if err != nil {
		return Admission{}, err
	}

	adm := Admit(p, site)
	if adm.Degraded {
		r.logger.Warn("geofence admitted in degraded mode",
			"site_id", site.ID,
			"accepted", adm.Accepted,
		)
	}
	return adm, nil
}
