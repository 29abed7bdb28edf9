// Package shift reconciles attendance logs against scheduled shift windows.
package shift

import (
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Reconciliation holds the derived minutes for one log.
type Reconciliation struct {
	TotalMinutes    *int `json:"total_minutes,omitempty"`
	LateMinutes     int  `json:"late_minutes"`
	EarlyMinutes    int  `json:"early_minutes"`
	OvertimeMinutes int  `json:"overtime_minutes"`
}

// MinuteOfDay returns minutes since midnight of t on the wall clock of loc.
// Shift windows are expressed in that clock, while the attendance server
// reports instants in UTC. A nil loc uses t's own location.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Hour()*60 + t.Minute()
}

// Reconcile derives late, early, total and overtime minutes, reading
// wall-clock minutes in loc. The total prefers the authoritative value when
// the server supplied one. All derived values are non-negative.
func Reconcile(window domain.ShiftWindow, startedAt time.Time, endedAt *time.Time, authoritativeTotal *int, loc *time.Location) Reconciliation {
	var r Reconciliation

	r.LateMinutes = max(0, normalizeStart(window, MinuteOfDay(startedAt, loc))-window.StartMinutes)

	switch {
	case authoritativeTotal != nil && *authoritativeTotal >= 0:
		total := *authoritativeTotal
		r.TotalMinutes = &total
	case endedAt != nil:
		total := int(endedAt.Sub(startedAt) / time.Minute)
		// Only a clock that went backwards crossed midnight. An immediate
		// checkout is zero minutes, not a day worked.
		if total <= 0 && MinuteOfDay(*endedAt, loc) < MinuteOfDay(startedAt, loc) {
			total += domain.MinutesPerDay
		}
		total = max(0, total)
		r.TotalMinutes = &total
	}

	if endedAt != nil {
		r.EarlyMinutes = EarlyMinutes(window, *endedAt, loc)
	}

	if r.TotalMinutes != nil {
		r.OvertimeMinutes = max(0, *r.TotalMinutes-window.ScheduledMinutes())
	}

	return r
}

// EarlyMinutes returns how long before the scheduled end the log was closed.
func EarlyMinutes(window domain.ShiftWindow, endedAt time.Time, loc *time.Location) int {
	end := window.EndMinutes
	out := MinuteOfDay(endedAt, loc)
	if window.Overnight() {
		end += domain.MinutesPerDay
		// A checkout after midnight belongs to the next day of the window.
		if out < window.StartMinutes {
			out += domain.MinutesPerDay
		}
	}
	return max(0, end-out)
}

// normalizeStart moves a check-in that happened after midnight of an
// overnight window onto the window's timeline.
func normalizeStart(window domain.ShiftWindow, minute int) int {
	if window.Overnight() && minute < window.EndMinutes {
		return minute + domain.MinutesPerDay
	}
	return minute
}

// Merge builds the presented ShiftLog. Values from the server record win
// where present; local ones fill the gaps.
func Merge(local Reconciliation, startedAt time.Time, endedAt *time.Time, server *domain.AttendanceLog) domain.ShiftLog {
	out := domain.ShiftLog{
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		TotalMinutes:    local.TotalMinutes,
		LateMinutes:     local.LateMinutes,
		EarlyMinutes:    local.EarlyMinutes,
		OvertimeMinutes: local.OvertimeMinutes,
	}
	if server == nil {
		return out
	}

	if !server.Checkin.Time.IsZero() {
		out.StartedAt = server.Checkin.Time
	}
	if server.Checkout != nil && !server.Checkout.Time.IsZero() {
		t := server.Checkout.Time
		out.EndedAt = &t
	}
	if server.TotalMinutes != nil && *server.TotalMinutes >= 0 {
		v := *server.TotalMinutes
		out.TotalMinutes = &v
	}
	if server.LateMinutes != nil && *server.LateMinutes >= 0 {
		out.LateMinutes = *server.LateMinutes
	}
	if server.EarlyMinutes != nil && *server.EarlyMinutes >= 0 {
		out.EarlyMinutes = *server.EarlyMinutes
	}
	if server.OvertimeMinutes != nil && *server.OvertimeMinutes >= 0 {
		out.OvertimeMinutes = *server.OvertimeMinutes
	}
	return out
}
