package domain

import "time"

// MinutesPerDay is used to normalise windows and durations crossing midnight.
const MinutesPerDay = 1440

// ShiftWindow is a scheduled shift expressed in minutes since local midnight.
type ShiftWindow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
}

// Overnight reports whether the window ends on the following day.
func (w ShiftWindow) Overnight() bool {
	return w.EndMinutes <= w.StartMinutes
}

// ScheduledMinutes is the window length, wrapping overnight windows.
func (w ShiftWindow) ScheduledMinutes() int {
	end := w.EndMinutes
	if w.Overnight() {
		end += MinutesPerDay
	}
	return end - w.StartMinutes
}

// ShiftLog is the reconciled view of one attendance log.
type ShiftLog struct {
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	TotalMinutes    *int       `json:"total_minutes,omitempty"`
	LateMinutes     int        `json:"late_minutes"`
	EarlyMinutes    int        `json:"early_minutes"`
	OvertimeMinutes int        `json:"overtime_minutes"`
}
