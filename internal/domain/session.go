package domain

// SessionStatus values are part of the wire contract with the UI.
type SessionStatus string

const (
	StatusScanning  SessionStatus = "scanning"
	StatusUploading SessionStatus = "uploading"
	StatusSuccess   SessionStatus = "success"
	StatusFail      SessionStatus = "fail"
	StatusError     SessionStatus = "error"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFail, StatusError:
		return true
	}
	return false
}

// FailureReason distinguishes failure causes internally. The UI only sees
// the status and message.
type FailureReason string

const (
	ReasonNone           FailureReason = ""
	ReasonPrecondition   FailureReason = "precondition"
	ReasonReference      FailureReason = "reference"
	ReasonCamera         FailureReason = "camera"
	ReasonMismatch       FailureReason = "mismatch"
	ReasonServerRejected FailureReason = "server_rejected"
	ReasonServerError    FailureReason = "server_error"
	ReasonInternal       FailureReason = "internal"
)

// VerificationAttempt is the audit row written for each finished session.
type VerificationAttempt struct {
	SessionID      string        `json:"session_id"`
	SubjectID      string        `json:"subject_id"`
	EventID        string        `json:"event_id,omitempty"`
	Status         SessionStatus `json:"status"`
	Reason         FailureReason `json:"reason,omitempty"`
	Match          bool          `json:"match"`
	Distance       *float64      `json:"distance,omitempty"`
	ServerAccepted bool          `json:"server_accepted"`
	LatencyMs      int64         `json:"latency_ms"`
}
