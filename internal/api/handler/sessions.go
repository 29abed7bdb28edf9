package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
)

const (
	maxFrameSize = 2 * 1024 * 1024 // 2MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// SessionManager is the part of the verification manager the HTTP layer uses.
type SessionManager interface {
	Open(req verification.OpenRequest) (verification.Snapshot, error)
	Snapshot(id uuid.UUID) (verification.Snapshot, error)
	Close(id uuid.UUID) error
	PushFrame(id uuid.UUID, frame []byte) error
}

type SessionHandler struct {
	sessions SessionManager
	frames   *FrameLimiter
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionManager, frames *FrameLimiter, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		frames:   frames,
		logger:   logger,
	}
}

// OpenSessionRequest body for POST /v1/sessions
type OpenSessionRequest struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	ImageURL    string `json:"image_url"`
	EventID     string `json:"event_id"`
	VerifyOnly  bool   `json:"verify_only"`
	CameraURL   string `json:"camera_url"`
}

// Open POST /v1/sessions - start a verification session
func (h *SessionHandler) Open(c *fiber.Ctx) error {
	var req OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" {
		return domain.ErrValidationFailed.WithMessage("subject_id is required")
	}

	// missing image or event are reported through the session itself
	snap, err := h.sessions.Open(verification.OpenRequest{
		Subject: domain.Subject{
			ID:                 req.SubjectID,
			Name:               req.SubjectName,
			EnrollmentImageURL: strings.TrimSpace(req.ImageURL),
		},
		EventID:    strings.TrimSpace(req.EventID),
		VerifyOnly: req.VerifyOnly,
		CameraURL:  strings.TrimSpace(req.CameraURL),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(snap)
}

// Get GET /v1/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// Close DELETE /v1/sessions/:id - idempotent manual close
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.sessions.Close(id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PushFrame POST /v1/sessions/:id/frames - multipart "frame" or raw image body
func (h *SessionHandler) PushFrame(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if h.frames != nil && !h.frames.Allow(id) {
		return domain.ErrRateLimitExceeded
	}

	frame, err := extractFrame(c)
	if err != nil {
		return err
	}

	if err := h.sessions.PushFrame(id, frame); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func sessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrSessionNotFound
	}
	return id, nil
}

func extractFrame(c *fiber.Ctx) ([]byte, error) {
	var frame []byte

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("frame")
		if err != nil {
			return nil, domain.ErrValidationFailed.WithError(err)
		}
		if file.Size > maxFrameSize {
			return nil, domain.ErrInvalidImage.WithMessage("Frame exceeds 2MB")
		}

		f, err := file.Open()
		if err != nil {
			return nil, domain.ErrInvalidImage.WithError(err)
		}
		defer func() {
			_ = f.Close()
		}()

		frame, err = io.ReadAll(f)
		if err != nil {
			return nil, domain.ErrInvalidImage.WithError(err)
		}
	} else {
		frame = append([]byte(nil), c.Body()...)
	}

	if len(frame) == 0 {
		return nil, domain.ErrInvalidImage.WithMessage("Frame is empty")
	}
	if len(frame) > maxFrameSize {
		return nil, domain.ErrInvalidImage.WithMessage("Frame exceeds 2MB")
	}
	if !validImageTypes[http.DetectContentType(frame)] {
		return nil, domain.ErrInvalidImage
	}

	return frame, nil
}
