package domain

import (
	"encoding/json"
	"time"
)

// AttendanceEvent is what the gate submits after a verification.
type AttendanceEvent struct {
	SubjectID string    `json:"subject_id"`
	EventID   string    `json:"event_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ImageData string    `json:"-"`
	Match     bool      `json:"match"`
	Distance  float64   `json:"distance"`
	Position  *GeoPoint `json:"position,omitempty"`
}

// MarkResult is the attendance service answer to an event-scoped mark.
type MarkResult struct {
	Accepted bool            `json:"accepted"`
	Message  string          `json:"message,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
}

type LogStatus string

const (
	LogInProgress LogStatus = "in-progress"
	LogCompleted  LogStatus = "completed"
)

// Punch is one side (checkin or checkout) of an attendance log.
type Punch struct {
	Time      time.Time `json:"time"`
	Photos    []string  `json:"photos,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
}

// AttendanceLog is the server-side record of a shift check-in/out pair.
type AttendanceLog struct {
	ID              string    `json:"id"`
	SubjectID       string    `json:"subject_id"`
	Status          LogStatus `json:"status"`
	LocationID      string    `json:"location_id,omitempty"`
	ShiftID         string    `json:"shift_id,omitempty"`
	Checkin         Punch     `json:"checkin"`
	Checkout        *Punch    `json:"checkout,omitempty"`
	TotalMinutes    *int      `json:"total_minutes,omitempty"`
	LateMinutes     *int      `json:"late_minutes,omitempty"`
	EarlyMinutes    *int      `json:"early_minutes,omitempty"`
	OvertimeMinutes *int      `json:"overtime_minutes,omitempty"`
}

func (l *AttendanceLog) Completed() bool {
	return l.Status == LogCompleted
}
