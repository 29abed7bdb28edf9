package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so errors produced by
// WithError still compare equal to the catalog entry they came from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// WithMessage returns a copy of the error with a caller supplied message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    msg,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing gate key",
		StatusCode: 401,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	// Precondition errors
	ErrNoEnrollmentImage = &AppError{
		Code:       "NO_ENROLLMENT_IMAGE",
		Message:    "User has no face image.",
		StatusCode: 422,
	}

	ErrNoTargetEvent = &AppError{
		Code:       "NO_TARGET_EVENT",
		Message:    "Event has no ID.",
		StatusCode: 422,
	}

	ErrLocationRequired = &AppError{
		Code:       "LOCATION_REQUIRED",
		Message:    "An attendance location is required",
		StatusCode: 422,
	}

	ErrDeviceNotApproved = &AppError{
		Code:       "DEVICE_NOT_APPROVED",
		Message:    "This device is not approved for attendance",
		StatusCode: 403,
	}

	ErrDeviceMismatch = &AppError{
		Code:       "DEVICE_MISMATCH",
		Message:    "Checkout must use the same device as checkin",
		StatusCode: 403,
	}

	ErrAlreadyCheckedOut = &AppError{
		Code:       "ALREADY_CHECKED_OUT",
		Message:    "Attendance log is already completed",
		StatusCode: 409,
	}

	// Sensing errors
	ErrCameraUnavailable = &AppError{
		Code:       "CAMERA_UNAVAILABLE",
		Message:    "Error initializing camera.",
		StatusCode: 503,
	}

	ErrPositionUnavailable = &AppError{
		Code:       "POSITION_UNAVAILABLE",
		Message:    "Unable to determine position",
		StatusCode: 422,
	}

	ErrInvalidCoordinates = &AppError{
		Code:       "INVALID_COORDINATES",
		Message:    "Coordinates are out of range",
		StatusCode: 422,
	}

	ErrReferenceFaceNotFound = &AppError{
		Code:       "REFERENCE_FACE_NOT_FOUND",
		Message:    "Cannot extract face from reference image.",
		StatusCode: 422,
	}

	// Decision errors
	ErrOutsideGeofence = &AppError{
		Code:       "OUTSIDE_GEOFENCE",
		Message:    "You are outside the allowed attendance radius",
		StatusCode: 403,
	}

	ErrSessionNotVerified = &AppError{
		Code:       "SESSION_NOT_VERIFIED",
		Message:    "Face verification has not succeeded for this session",
		StatusCode: 409,
	}

	// Server errors
	ErrAttendanceRejected = &AppError{
		Code:       "ATTENDANCE_REJECTED",
		Message:    "Attendance service rejected the request",
		StatusCode: 422,
	}

	ErrAttendanceUnavailable = &AppError{
		Code:       "ATTENDANCE_UNAVAILABLE",
		Message:    "Attendance service is unavailable",
		StatusCode: 502,
	}

	// Resource errors
	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Verification session not found",
		StatusCode: 404,
	}

	ErrSessionClosed = &AppError{
		Code:       "SESSION_CLOSED",
		Message:    "Verification session is closed",
		StatusCode: 409,
	}
)
