package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// OpenSessionRequest represents the body of POST /v1/sessions
type OpenSessionRequest struct {
	SubjectID   string `json:"subject_id" example:"emp-1042"`
	SubjectName string `json:"subject_name" example:"Ana Souza"`
	ImageURL    string `json:"image_url" example:"https://cdn.example.com/faces/emp-1042.jpg"`
	EventID     string `json:"event_id,omitempty" example:"evt-77"`
	VerifyOnly  bool   `json:"verify_only" example:"true"`
	CameraURL   string `json:"camera_url,omitempty" example:"http://10.0.0.12/snapshot.jpg"`
}

// SessionSnapshot represents the observable state of a verification session
type SessionSnapshot struct {
	ID             string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SubjectID      string   `json:"subject_id" example:"emp-1042"`
	EventID        string   `json:"event_id,omitempty" example:"evt-77"`
	VerifyOnly     bool     `json:"verify_only" example:"true"`
	Status         string   `json:"status" example:"scanning"`
	Message        string   `json:"message" example:"Look at the camera"`
	Streak         int      `json:"streak" example:"1"`
	RequiredStreak int      `json:"required_streak" example:"2"`
	Distance       *float64 `json:"distance,omitempty" example:"0.31"`
	Countdown      int      `json:"countdown,omitempty" example:"4"`
	Closed         bool     `json:"closed" example:"false"`
	Seq            uint64   `json:"seq" example:"7"`
	UpdatedAt      string   `json:"updated_at" example:"2024-01-01T08:59:12Z"`
}

// Position represents a reported device position or a sensor failure
type Position struct {
	Latitude  *float64 `json:"latitude,omitempty" example:"-23.5505"`
	Longitude *float64 `json:"longitude,omitempty" example:"-46.6333"`
	Error     string   `json:"error,omitempty" example:"timeout"`
}

// CheckinRequest represents the body of POST /v1/checkin
type CheckinRequest struct {
	SessionID  string   `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SubjectID  string   `json:"subject_id" example:"emp-1042"`
	DeviceID   string   `json:"device_id" example:"kiosk-lobby-1"`
	LocationID string   `json:"location_id" example:"site-hq"`
	ShiftID    string   `json:"shift_id,omitempty" example:"shift-morning"`
	Position   Position `json:"position"`
}

// CheckoutRequest represents the body of POST /v1/checkout
type CheckoutRequest struct {
	SessionID string   `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SubjectID string   `json:"subject_id" example:"emp-1042"`
	DeviceID  string   `json:"device_id" example:"kiosk-lobby-1"`
	LogID     string   `json:"log_id" example:"log-88"`
	Position  Position `json:"position"`
}

// AttendanceLog represents an attendance record returned by the attendance server
type AttendanceLog struct {
	ID              string `json:"id" example:"log-88"`
	SubjectID       string `json:"subject_id" example:"emp-1042"`
	Status          string `json:"status" example:"in-progress"`
	CheckinAt       string `json:"checkin_at" example:"2024-01-01T09:12:00Z"`
	CheckoutAt      string `json:"checkout_at,omitempty" example:"2024-01-01T18:05:00Z"`
	LateMinutes     int    `json:"late_minutes,omitempty" example:"12"`
	TotalMinutes    *int   `json:"total_minutes,omitempty" example:"533"`
	OvertimeMinutes *int   `json:"overtime_minutes,omitempty" example:"5"`
}

// ShiftPreview represents the locally reconciled shift figures
type ShiftPreview struct {
	LateMinutes     int  `json:"late_minutes" example:"12"`
	EarlyMinutes    int  `json:"early_minutes" example:"0"`
	TotalMinutes    *int `json:"total_minutes,omitempty" example:"533"`
	OvertimeMinutes int  `json:"overtime_minutes" example:"5"`
}

// GeofenceAdmission represents the geofence decision for a punch
type GeofenceAdmission struct {
	DistanceMeters float64 `json:"distance_meters" example:"14.2"`
	RadiusMeters   float64 `json:"radius_meters" example:"100"`
	Accepted       bool    `json:"accepted" example:"true"`
	Degraded       bool    `json:"gps_bypassed" example:"false"`
	Source         string  `json:"source" example:"device"`
}

// PunchResponse represents the result of a check-in or check-out
type PunchResponse struct {
	Log      AttendanceLog      `json:"log"`
	Shift    *ShiftPreview      `json:"shift,omitempty"`
	Geofence *GeofenceAdmission `json:"geofence,omitempty"`
}

// HealthResponse represents the liveness and readiness payloads
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Version  string `json:"version,omitempty" example:"0.1.0"`
	Sessions *int   `json:"sessions,omitempty" example:"3"`
	Error    string `json:"error,omitempty" example:""`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (202/204)
type EmptyResponse struct{}

var (
	errUnauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing gate key"}, "401", "Unauthorized")
	errRateLimited  = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	errNotFound     = response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Verification session not found"}, "404", "Not Found")

	gateKey = []map[string][]string{{"GateKeyAuth": {}}}
)

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Ponto Gate API",
		Version:     "v1.0.0",
		Description: "Face-verified attendance gate: live verification sessions, event attendance marking and geofenced shift check-in/check-out",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	sessionIDParam := parameter.StrParam("id", parameter.Path, parameter.WithDescription("Verification session ID"))

	endpoints := []*endpoint.EndPoint{
		// Sessions endpoints

		// POST /v1/sessions - Open Session
		endpoint.New(
			endpoint.POST,
			"/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Open a verification session"),
			endpoint.WithDescription("Starts sampling frames for the subject. Without camera_url the client pushes frames itself. Missing enrollment image or event are reported on the session, not as request errors."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(OpenSessionRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionSnapshot{}, "201", "Session opened"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				errUnauthorized,
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "subject_id is required"}, "422", "Unprocessable Entity"),
				errRateLimited,
				errInternal,
			}),
			endpoint.WithSecurity(gateKey),
		),

		// GET /v1/sessions/:id - Get Session
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get a verification session"),
			endpoint.WithDescription("Returns the latest snapshot of the session, including countdown and closed state"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionSnapshot{}, "200", "Snapshot retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				errNotFound,
				errInternal,
			}),
			endpoint.WithSecurity(gateKey),
		),

		// DELETE /v1/sessions/:id - Close Session
		endpoint.New(
			endpoint.DELETE,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Close a verification session"),
			endpoint.WithDescription("Stops sampling and releases the camera. Closing an already closed session succeeds."),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Session closed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				errNotFound,
			}),
			endpoint.WithSecurity(gateKey),
		),

		// POST /v1/sessions/:id/frames - Push Frame
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/frames",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Push a camera frame"),
			endpoint.WithDescription("Accepts a JPEG or PNG frame (max 2MB) as a raw body or as multipart field \"frame\". Only the latest frame is kept."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("image/jpeg"), mime.MIME("image/png"), mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "202", "Frame accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "session reads frames from an IP camera"}, "400", "Bad Request"),
				errUnauthorized,
				errNotFound,
				response.New(ErrorResponse{Code: "SESSION_CLOSED", Message: "Verification session is closed"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Frame must be a JPEG or PNG image"}, "422", "Unprocessable Entity"),
				errRateLimited,
			}),
			endpoint.WithSecurity(gateKey),
		),

		// GET /v1/sessions/:id/ws - Session Stream
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}/ws",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Stream session events"),
			endpoint.WithDescription("WebSocket upgrade. Emits session.snapshot, session.succeeded and session.closed events; binary messages are pushed as frames. Browsers may pass the gate key as access_token."),
			endpoint.WithParams(
				sessionIDParam,
				parameter.StrParam("access_token", parameter.Query, parameter.WithDescription("Gate key, accepted only on WebSocket upgrades")),
			),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "UPGRADE_REQUIRED", Message: "WebSocket upgrade required"}, "426", "Upgrade Required"),
			}),
			endpoint.WithSecurity(gateKey),
		),

		// Attendance endpoints

		// POST /v1/checkin - Check In
		endpoint.New(
			endpoint.POST,
			"/checkin",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Check in to a shift"),
			endpoint.WithDescription("Consumes a successful verify-only session and records a check-in after device approval and geofence checks. A position error falls back to the site coordinates."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(CheckinRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PunchResponse{}, "201", "Check-in recorded"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "DEVICE_NOT_APPROVED", Message: "Device is not approved for attendance"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "OUTSIDE_GEOFENCE", Message: "You are 612m from HQ (allowed 100m)"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "SESSION_NOT_VERIFIED", Message: "Session has no unused successful verification"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "session_id must be a UUID"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "ATTENDANCE_UNAVAILABLE", Message: "Attendance server unavailable"}, "502", "Bad Gateway"),
			}),
			endpoint.WithSecurity(gateKey),
		),

		// POST /v1/checkout - Check Out
		endpoint.New(
			endpoint.POST,
			"/checkout",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Check out of a shift"),
			endpoint.WithDescription("Closes an open attendance log from the device that opened it. The response carries the server's totals with a local preview of late, early and overtime minutes, including overnight shifts."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(CheckoutRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PunchResponse{}, "200", "Check-out recorded"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "DEVICE_MISMATCH", Message: "Check-out must use the check-in device"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "ALREADY_CHECKED_OUT", Message: "Attendance log is already completed"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "log_id is required"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "ATTENDANCE_UNAVAILABLE", Message: "Attendance server unavailable"}, "502", "Bad Gateway"),
			}),
			endpoint.WithSecurity(gateKey),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
