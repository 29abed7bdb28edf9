package attendance

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxDiagnostic bounds how much of a raw error body is surfaced.
const maxDiagnostic = 200

var (
	// ErrUnavailable indicates the attendance service could not be reached
	// or kept failing after retries.
	ErrUnavailable = errors.New("attendance service unavailable")

	// ErrInvalidResponse indicates a body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from attendance service")
)

// StatusError is returned for non-2xx answers. Message carries the
// service's own "message" field when it sent one; Body is the raw answer.
type StatusError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if d := e.Diagnostic(); d != "" {
		return fmt.Sprintf("attendance service returned status %d: %s", e.StatusCode, d)
	}
	return fmt.Sprintf("attendance service returned status %d", e.StatusCode)
}

// Diagnostic returns the service message, or the trimmed response body when
// the service sent no message.
func (e *StatusError) Diagnostic() string {
	if e.Message != "" {
		return e.Message
	}
	body := strings.TrimSpace(e.Body)
	if utf8.RuneCountInString(body) <= maxDiagnostic {
		return body
	}
	return string([]rune(body)[:maxDiagnostic]) + "..."
}

// Rejected reports whether the service refused the request on its merits
// rather than failing.
func (e *StatusError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
