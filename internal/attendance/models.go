package attendance

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// ref is a document reference that the service sends either as a bare id
// or as a populated object carrying "_id".
type ref string

func (r *ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ref(s)
		return nil
	}

	var obj struct {
		ID  string `json:"_id"`
		Alt string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.ID == "" {
		obj.ID = obj.Alt
	}
	*r = ref(obj.ID)
	return nil
}

type markRequest struct {
	UserID    string  `json:"userId"`
	Success   bool    `json:"success"`
	ImageData string  `json:"imageData,omitempty"`
	Distance  float64 `json:"distance"`
}

type markResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type messageBody struct {
	Message string `json:"message"`
}

type locationDoc struct {
	ID           ref      `json:"_id"`
	Name         string   `json:"name"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	RadiusMeters *float64 `json:"radiusMeters"`
}

func (d locationDoc) toDomain() domain.AttendanceSite {
	site := domain.AttendanceSite{
		ID:        string(d.ID),
		Name:      d.Name,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
	}
	if d.RadiusMeters != nil {
		site.RadiusMeters = *d.RadiusMeters
	}
	return site
}

type shiftDoc struct {
	ID           ref    `json:"_id"`
	Name         string `json:"name"`
	StartMinutes int    `json:"startMinutes"`
	EndMinutes   int    `json:"endMinutes"`
}

func (d shiftDoc) toDomain() domain.ShiftWindow {
	return domain.ShiftWindow{
		ID:           string(d.ID),
		Name:         d.Name,
		StartMinutes: d.StartMinutes,
		EndMinutes:   d.EndMinutes,
	}
}

type deviceDoc struct {
	ID        ref    `json:"_id"`
	User      ref    `json:"user"`
	Status    string `json:"status"`
	NewDevice struct {
		DeviceID string `json:"deviceId"`
	} `json:"newDevice"`
}

type punchDoc struct {
	Time      *time.Time `json:"time"`
	Photos    []string   `json:"photos"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	DeviceID  string     `json:"deviceId"`
}

func (p *punchDoc) toDomain() *domain.Punch {
	if p == nil || p.Time == nil || p.Time.IsZero() {
		return nil
	}
	return &domain.Punch{
		Time:      *p.Time,
		Photos:    p.Photos,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		DeviceID:  p.DeviceID,
	}
}

type logDoc struct {
	ID              ref       `json:"_id"`
	User            ref       `json:"user"`
	Shift           ref       `json:"shift"`
	Location        ref       `json:"location"`
	Status          string    `json:"status"`
	Checkin         punchDoc  `json:"checkin"`
	Checkout        *punchDoc `json:"checkout"`
	TotalMinutes    *int      `json:"totalMinutes"`
	LateMinutes     *int      `json:"lateMinutes"`
	EarlyMinutes    *int      `json:"earlyMinutes"`
	OvertimeMinutes *int      `json:"overtimeMinutes"`
}

func (d logDoc) toDomain() *domain.AttendanceLog {
	log := &domain.AttendanceLog{
		ID:              string(d.ID),
		SubjectID:       string(d.User),
		Status:          domain.LogStatus(d.Status),
		LocationID:      string(d.Location),
		ShiftID:         string(d.Shift),
		Checkout:        d.Checkout.toDomain(),
		TotalMinutes:    d.TotalMinutes,
		LateMinutes:     d.LateMinutes,
		EarlyMinutes:    d.EarlyMinutes,
		OvertimeMinutes: d.OvertimeMinutes,
	}
	if in := d.Checkin.toDomain(); in != nil {
		log.Checkin = *in
	}
	return log
}

// CheckinRequest opens an attendance log for a subject.
type CheckinRequest struct {
	SubjectID  string   `json:"userId"`
	ShiftID    string   `json:"shiftId,omitempty"`
	LocationID string   `json:"locationId"`
	DeviceID   string   `json:"deviceId"`
	Photos     []string `json:"photos,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// CheckoutRequest closes an open attendance log.
type CheckoutRequest struct {
	SubjectID string   `json:"userId"`
	LogID     string   `json:"logId"`
	DeviceID  string   `json:"deviceId"`
	Photos    []string `json:"photos,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
