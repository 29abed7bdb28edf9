package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geofence"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

// PunchService runs geofenced check-in and check-out.
type PunchService interface {
	Checkin(ctx context.Context, in service.CheckinInput) (*service.PunchResult, error)
	Checkout(ctx context.Context, in service.CheckoutInput) (*service.PunchResult, error)
}

type AttendanceHandler struct {
	service PunchService
	logger  *slog.Logger
}

func NewAttendanceHandler(service PunchService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger,
	}
}

// CheckinRequest body for POST /v1/checkin
type CheckinRequest struct {
	SessionID  string            `json:"session_id"`
	SubjectID  string            `json:"subject_id"`
	DeviceID   string            `json:"device_id"`
	LocationID string            `json:"location_id"`
	ShiftID    string            `json:"shift_id"`
	Position   geofence.Reported `json:"position"`
}

// CheckoutRequest body for POST /v1/checkout
type CheckoutRequest struct {
	SessionID string            `json:"session_id"`
	SubjectID string            `json:"subject_id"`
	DeviceID  string            `json:"device_id"`
	LogID     string            `json:"log_id"`
	Position  geofence.Reported `json:"position"`
}

// Checkin POST /v1/checkin
func (h *AttendanceHandler) Checkin(c *fiber.Ctx) error {
	var req CheckinRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	sessionID, err := parseSessionID(req.SessionID)
	if err != nil {
		return err
	}

	result, err := h.service.Checkin(c.Context(), service.CheckinInput{
		SessionID:  sessionID,
		SubjectID:  strings.TrimSpace(req.SubjectID),
		DeviceID:   strings.TrimSpace(req.DeviceID),
		LocationID: strings.TrimSpace(req.LocationID),
		ShiftID:    strings.TrimSpace(req.ShiftID),
		Position:   req.Position,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Checkout POST /v1/checkout
func (h *AttendanceHandler) Checkout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	sessionID, err := parseSessionID(req.SessionID)
	if err != nil {
		return err
	}

	result, err := h.service.Checkout(c.Context(), service.CheckoutInput{
		SessionID: sessionID,
		SubjectID: strings.TrimSpace(req.SubjectID),
		DeviceID:  strings.TrimSpace(req.DeviceID),
		LogID:     strings.TrimSpace(req.LogID),
		Position:  req.Position,
	})
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func parseSessionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.ErrValidationFailed.WithMessage("session_id must be a UUID")
	}
	return id, nil
}
