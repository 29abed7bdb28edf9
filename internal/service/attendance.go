package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/attendance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geofence"
	"github.com/saturnino-fabrica-de-software/ponto/internal/shift"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
)

type AttendanceAPI interface {
	DeviceApproved(ctx context.Context, subjectID, deviceID string) (bool, error)
	Site(ctx context.Context, locationID string) (domain.AttendanceSite, error)
	Shift(ctx context.Context, shiftID string) (domain.ShiftWindow, error)
	Log(ctx context.Context, subjectID, logID string) (*domain.AttendanceLog, error)
	Checkin(ctx context.Context, req attendance.CheckinRequest) (*domain.AttendanceLog, error)
	Checkout(ctx context.Context, req attendance.CheckoutRequest) (*domain.AttendanceLog, error)
}

// VerifiedSessions hands out the outcome of a finished verify-only session.
type VerifiedSessions interface {
	TakeOutcome(id uuid.UUID, subjectID string) (verification.Outcome, error)
}

type PositionResolver interface {
	Resolve(ctx context.Context, site domain.AttendanceSite, loc geofence.Locator) (domain.GeoPoint, error)
}

type CheckinInput struct {
	SessionID  uuid.UUID
	SubjectID  string
	DeviceID   string
	LocationID string
	ShiftID    string
	Position   geofence.Reported
}

type CheckoutInput struct {
	SessionID uuid.UUID
	SubjectID string
	DeviceID  string
	LogID     string
	Position  geofence.Reported
}

// PunchResult is returned by Checkin and Checkout.
type PunchResult struct {
	Log      *domain.AttendanceLog `json:"log"`
	Shift    *domain.ShiftLog      `json:"shift,omitempty"`
	Geofence *geofence.Admission   `json:"geofence,omitempty"`
}

// AttendanceService runs the geofenced check-in and check-out flow on top of
// a face-verified session.
type AttendanceService struct {
	api       AttendanceAPI
	sessions  VerifiedSessions
	positions PositionResolver
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewAttendanceService creates the service. location is the wall clock shift
// windows are written in; nil means the process's local time.
func NewAttendanceService(api AttendanceAPI, sessions VerifiedSessions, positions PositionResolver, location *time.Location, logger *slog.Logger) *AttendanceService {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.Local
	}
	return &AttendanceService{
		api:       api,
		sessions:  sessions,
		positions: positions,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AttendanceService) Checkin(ctx context.Context, in CheckinInput) (*PunchResult, error) {
	if in.SubjectID == "" {
		return nil, domain.ErrValidationFailed.WithMessage("subject_id is required")
	}
	if in.LocationID == "" {
		return nil, domain.ErrLocationRequired
	}
	if err := s.requireDevice(ctx, in.SubjectID, in.DeviceID); err != nil {
		return nil, err
	}

	site, err := s.api.Site(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}

	adm, err := s.admit(ctx, site, in.Position)
	if err != nil {
		return nil, err
	}

	outcome, err := s.sessions.TakeOutcome(in.SessionID, in.SubjectID)
	if err != nil {
		return nil, err
	}

	lat, lon := coordinates(adm)
	log, err := s.api.Checkin(ctx, attendance.CheckinRequest{
		SubjectID:  in.SubjectID,
		ShiftID:    in.ShiftID,
		LocationID: in.LocationID,
		DeviceID:   in.DeviceID,
		Photos:     []string{outcome.ImageData},
		Latitude:   lat,
		Longitude:  lon,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkin recorded",
		"subject_id", in.SubjectID,
		"log_id", log.ID,
		"distance_m", adm.DistanceMeters,
		"gps_bypassed", adm.Degraded,
	)

	return &PunchResult{
		Log:      log,
		Shift:    s.reconcile(ctx, firstNonEmpty(log.ShiftID, in.ShiftID), log),
		Geofence: &adm,
	}, nil
}

func (s *AttendanceService) Checkout(ctx context.Context, in CheckoutInput) (*PunchResult, error) {
	if in.SubjectID == "" || in.LogID == "" {
		return nil, domain.ErrValidationFailed.WithMessage("subject_id and log_id are required")
	}

	open, err := s.api.Log(ctx, in.SubjectID, in.LogID)
	if err != nil {
		return nil, err
	}
	if open.Completed() {
		return nil, domain.ErrAlreadyCheckedOut
	}
	// checkout must come from the device that checked in
	if in.DeviceID == "" || in.DeviceID != open.Checkin.DeviceID {
		return nil, domain.ErrDeviceMismatch
	}

	var adm *geofence.Admission
	if open.LocationID != "" {
		site, err := s.api.Site(ctx, open.LocationID)
		if err != nil {
			return nil, err
		}
		a, err := s.admit(ctx, site, in.Position)
		if err != nil {
			return nil, err
		}
		adm = &a
	}

	outcome, err := s.sessions.TakeOutcome(in.SessionID, in.SubjectID)
	if err != nil {
		return nil, err
	}

	req := attendance.CheckoutRequest{
		SubjectID: in.SubjectID,
		LogID:     in.LogID,
		DeviceID:  in.DeviceID,
		Photos:    []string{outcome.ImageData},
	}
	if adm != nil {
		req.Latitude, req.Longitude = coordinates(*adm)
	}

	log, err := s.api.Checkout(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout recorded",
		"subject_id", in.SubjectID,
		"log_id", log.ID,
	)

	return &PunchResult{
		Log:      log,
		Shift:    s.reconcile(ctx, firstNonEmpty(log.ShiftID, open.ShiftID), log),
		Geofence: adm,
	}, nil
}

func (s *AttendanceService) requireDevice(ctx context.Context, subjectID, deviceID string) error {
	if deviceID == "" {
		return domain.ErrDeviceNotApproved
	}
	ok, err := s.api.DeviceApproved(ctx, subjectID, deviceID)
	if err != nil {
		return fmt.Errorf("check device approval: %w", err)
	}
	if !ok {
		return domain.ErrDeviceNotApproved
	}
	return nil
}

func (s *AttendanceService) admit(ctx context.Context, site domain.AttendanceSite, reported geofence.Reported) (geofence.Admission, error) {
	p, err := s.positions.Resolve(ctx, site, reported)
	if err != nil {
		return geofence.Admission{}, err
	}

	adm := geofence.Admit(p, site)
	if !adm.Accepted {
		s.logger.Info("position outside geofence",
			"site_id", site.ID,
			"radius_m", adm.RadiusMeters,
			"gps_bypassed", adm.Degraded,
		)
		return adm, domain.ErrOutsideGeofence.WithMessage(fmt.Sprintf(
			"You are %.0fm from %s (allowed %.0fm)", adm.DistanceMeters, site.Name, adm.RadiusMeters,
		))
	}
	if adm.Degraded {
		s.logger.Warn("geofence admitted using site coordinates", "site_id", site.ID)
	}
	return adm, nil
}

// reconcile computes the shift preview. A missing shift only costs the preview.
func (s *AttendanceService) reconcile(ctx context.Context, shiftID string, log *domain.AttendanceLog) *domain.ShiftLog {
	if shiftID == "" || log == nil {
		return nil
	}

	window, err := s.api.Shift(ctx, shiftID)
	if err != nil {
		s.logger.Warn("shift lookup failed", "shift_id", shiftID, "error", err)
		return nil
	}

	startedAt := log.Checkin.Time
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	var endedAt *time.Time
	if log.Checkout != nil && !log.Checkout.Time.IsZero() {
		t := log.Checkout.Time
		endedAt = &t
	}

	local := shift.Reconcile(window, startedAt, endedAt, log.TotalMinutes, s.location)
	merged := shift.Merge(local, startedAt, endedAt, log)
	return &merged
}

// coordinates returns the device position to submit. Fallback positions are
// the site's own coordinates and are not sent as device readings.
func coordinates(adm geofence.Admission) (*float64, *float64) {
	if adm.Source != domain.PositionDeviceReported {
		return nil, nil
	}
	lat, lon := adm.Position.Latitude, adm.Position.Longitude
	return &lat, &lon
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
