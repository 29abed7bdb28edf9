package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/biometric"
	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

const (
	msgInitializing       = "Initializing camera and models..."
	msgLoadingReference   = "Loading reference face data..."
	msgCameraReady        = "Camera ready. Please position your face..."
	msgNoFace             = "No face detected. Please adjust position."
	msgDetectionError     = "Detection error, retrying..."
	msgVerifying          = "Verifying face..."
	msgSuccess            = "Face verification successful"
	msgFailed             = "Face verification failed."
	msgMarkFailed         = "Failed to mark attendance."
	msgMissingDescriptors = "Missing face descriptors. Try again."
	msgVerifyError        = "Error verifying face."
)

// Config tunes the verification engine.
type Config struct {
	SampleInterval    time.Duration
	RequiredStreak    int
	Threshold         float64
	FailCountdown     int
	CountdownTick     time.Duration
	SuccessCloseDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval:    600 * time.Millisecond,
		RequiredStreak:    2,
		Threshold:         biometric.DefaultThreshold,
		FailCountdown:     5,
		CountdownTick:     time.Second,
		SuccessCloseDelay: time.Second,
	}
}

// ReferenceResolver produces the enrollment descriptor for a subject.
type ReferenceResolver interface {
	Resolve(ctx context.Context, subject domain.Subject) (domain.Descriptor, error)
}

// AttendanceMarker submits an event-scoped attendance mark.
type AttendanceMarker interface {
	MarkEventAttendance(ctx context.Context, event domain.AttendanceEvent) (*domain.MarkResult, error)
}

// AttemptRecorder persists the outcome of finished sessions.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *domain.VerificationAttempt) error
}

type Dependencies struct {
	References ReferenceResolver
	Source     provider.DescriptorSource
	Marker     AttendanceMarker
	Attempts   AttemptRecorder
	Logger     *slog.Logger
}

type Request struct {
	Subject    domain.Subject
	EventID    string
	VerifyOnly bool
}

// Hooks are invoked outside the session lock.
type Hooks struct {
	OnUpdate  func(Snapshot)
	OnSuccess func(Outcome)
	OnClose   func(Snapshot)
}

// Snapshot is an immutable view of a session for the UI.
type Snapshot struct {
	ID             uuid.UUID            `json:"id"`
	SubjectID      string               `json:"subject_id"`
	EventID        string               `json:"event_id,omitempty"`
	VerifyOnly     bool                 `json:"verify_only"`
	Status         domain.SessionStatus `json:"status"`
	Message        string               `json:"message"`
	Streak         int                  `json:"streak"`
	RequiredStreak int                  `json:"required_streak"`
	Distance       *float64             `json:"distance,omitempty"`
	Countdown      int                  `json:"countdown,omitempty"`
	Closed         bool                 `json:"closed"`
	Seq            uint64               `json:"seq"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Outcome is handed to OnSuccess with the captured image.
type Outcome struct {
	SessionID      uuid.UUID       `json:"session_id"`
	SubjectID      string          `json:"subject_id"`
	EventID        string          `json:"event_id,omitempty"`
	VerifyOnly     bool            `json:"verify_only"`
	Match          bool            `json:"match"`
	Distance       float64         `json:"distance"`
	ServerAccepted bool            `json:"server_accepted"`
	Message        string          `json:"message"`
	ImageData      string          `json:"image"`
	Record         json.RawMessage `json:"record,omitempty"`
	CapturedAt     time.Time       `json:"captured_at"`
}

// Session runs one verification from reference loading to close.
type Session struct {
	id     uuid.UUID
	req    Request
	cfg    Config
	camera capture.Camera
	deps   Dependencies
	hooks  Hooks
	logger *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	releaseOnce sync.Once
	done        chan struct{}

	// reference is written once by the run goroutine before sampling starts.
	reference domain.Descriptor

	mu             sync.Mutex
	status         domain.SessionStatus
	reason         domain.FailureReason
	message        string
	failBase       string
	streak         int
	distance       float64
	serverAccepted bool
	remaining      int
	countdown      *Countdown
	closeTimer     *time.Timer
	closed         bool
	outcome        *Outcome
	seq            uint64
	startedAt      time.Time
	updatedAt      time.Time
	closedAt       time.Time
}

// NewSession creates a session in the scanning state. It does nothing until Start.
func NewSession(ctx context.Context, req Request, camera capture.Camera, deps Dependencies, cfg Config, hooks Hooks) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	id := uuid.New()
	ctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	return &Session{
		id:     id,
		req:    req,
		cfg:    cfg,
		camera: camera,
		deps:   deps,
		hooks:  hooks,
		logger: deps.Logger.With(
			"session_id", id,
			"subject_id", req.Subject.ID,
		),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    domain.StatusScanning,
		message:   msgInitializing,
		distance:  math.Inf(1),
		startedAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start launches the session in the background. Only the first call has effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Outcome returns the success outcome, if the session succeeded.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// ClosedAt returns when the session was closed and whether it is.
func (s *Session) ClosedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedAt, s.closed
}

// StartedAt returns the creation time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Close stops sampling, cancels pending timers and in-flight requests and
// releases the camera. It is idempotent and valid in every state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closedAt = time.Now()
	s.cancel()
	if s.countdown != nil {
		s.countdown.Cancel()
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	snap := s.touchLocked()
	s.mu.Unlock()

	s.releaseCamera()
	close(s.done)

	s.publish(snap)
	if s.hooks.OnClose != nil {
		s.hooks.OnClose(snap)
	}
}

func (s *Session) run() {
	s.setMessage(msgLoadingReference)

	if s.req.Subject.EnrollmentImageURL == "" {
		s.fail(domain.StatusFail, domain.ReasonPrecondition, domain.ErrNoEnrollmentImage.Message)
		return
	}
	if !s.req.VerifyOnly && s.req.EventID == "" {
		s.fail(domain.StatusFail, domain.ReasonPrecondition, domain.ErrNoTargetEvent.Message)
		return
	}

	ref, err := s.deps.References.Resolve(s.ctx, s.req.Subject)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil || !ref.WellFormed() {
		s.logger.Warn("reference descriptor unavailable", "error", err)
		s.fail(domain.StatusFail, domain.ReasonReference, domain.ErrReferenceFaceNotFound.Message)
		return
	}
	s.reference = ref.Clone()

	if err := s.camera.Open(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Error("camera open failed", "error", err)
		s.fail(domain.StatusError, domain.ReasonCamera, domain.ErrCameraUnavailable.Message)
		return
	}
	s.setMessage(msgCameraReady)

	tracker := NewTracker(s.camera, s.deps.Source, s.cfg.RequiredStreak, s.cfg.SampleInterval, s.beginUpload, s.logger)

	accepted := false
	tracker.Run(s.ctx, func(res TickResult) bool {
		if res.Outcome == TickAccepted {
			accepted = true
			return false
		}
		return s.onTick(res)
	})
	if !accepted {
		return
	}

	desc, frame := tracker.Last()
	s.verify(desc, frame)
}

func (s *Session) onTick(res TickResult) bool {
	s.mu.Lock()
	if s.closed || s.status != domain.StatusScanning {
		s.mu.Unlock()
		return false
	}
	if res.Outcome == TickDetached {
		s.mu.Unlock()
		return true
	}

	s.streak = res.Streak
	switch res.Outcome {
	case TickHit, TickBusy:
		s.message = fmt.Sprintf("Verifying... (%d/%d)", res.Streak, s.cfg.RequiredStreak)
	case TickMiss:
		if res.Err != nil {
			s.message = msgDetectionError
		} else {
			s.message = msgNoFace
		}
	}
	snap := s.touchLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// beginUpload is the in-flight guard: only one scanning to uploading
// transition can succeed.
func (s *Session) beginUpload() bool {
	s.mu.Lock()
	if s.closed || !canTransition(s.status, domain.StatusUploading) {
		s.mu.Unlock()
		return false
	}
	s.status = domain.StatusUploading
	s.message = msgVerifying
	s.streak = s.cfg.RequiredStreak
	snap := s.touchLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

func (s *Session) verify(live domain.Descriptor, frame []byte) {
	if !s.reference.WellFormed() || !live.WellFormed() {
		s.fail(domain.StatusFail, domain.ReasonInternal, msgMissingDescriptors)
		return
	}

	cmp := biometric.Compare(s.reference, live, s.cfg.Threshold)
	s.mu.Lock()
	s.distance = cmp.Distance
	s.mu.Unlock()

	image, err := capture.JPEGDataURL(frame)
	if err != nil {
		s.logger.Error("frame encoding failed", "error", err)
		s.fail(domain.StatusError, domain.ReasonInternal, msgVerifyError)
		return
	}

	var (
		result *domain.MarkResult
		apiErr error
	)
	serverAccepted := true
	if !s.req.VerifyOnly {
		result, apiErr = s.deps.Marker.MarkEventAttendance(s.ctx, domain.AttendanceEvent{
			SubjectID: s.req.Subject.ID,
			EventID:   s.req.EventID,
			Timestamp: time.Now(),
			ImageData: image,
			Match:     cmp.Match,
			Distance:  cmp.Distance,
		})
		if s.ctx.Err() != nil {
			return
		}
		serverAccepted = apiErr == nil && result != nil && result.Accepted
	}

	serverMessage := ""
	if result != nil {
		serverMessage = result.Message
	}

	if cmp.Match && serverAccepted {
		msg := serverMessage
		if msg == "" {
			msg = msgSuccess
		}
		out := Outcome{
			SessionID:      s.id,
			SubjectID:      s.req.Subject.ID,
			EventID:        s.req.EventID,
			VerifyOnly:     s.req.VerifyOnly,
			Match:          cmp.Match,
			Distance:       cmp.Distance,
			ServerAccepted: serverAccepted,
			Message:        msg,
			ImageData:      image,
			CapturedAt:     time.Now(),
		}
		if result != nil {
			out.Record = result.Record
		}
		s.succeed(out)
		return
	}

	reason := domain.ReasonMismatch
	if cmp.Match {
		reason = domain.ReasonServerRejected
		if apiErr != nil {
			reason = domain.ReasonServerError
		}
	}
	if apiErr != nil {
		attrs := []any{"event_id", s.req.EventID, "error", apiErr}
		var diag interface{ Diagnostic() string }
		if errors.As(apiErr, &diag) && diag.Diagnostic() != "" {
			attrs = append(attrs, "body", diag.Diagnostic())
		}
		s.logger.Error("attendance request failed", attrs...)
	}

	msg := serverMessage
	if msg == "" {
		msg = msgFailed
		if apiErr != nil {
			msg = msgMarkFailed
		}
	}

	s.mu.Lock()
	s.serverAccepted = serverAccepted && !s.req.VerifyOnly
	s.mu.Unlock()

	s.fail(domain.StatusFail, reason, msg)
}

func (s *Session) succeed(out Outcome) {
	s.mu.Lock()
	if s.closed || !canTransition(s.status, domain.StatusSuccess) {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusSuccess
	s.message = out.Message
	s.outcome = &out
	snap := s.touchLocked()
	s.mu.Unlock()

	s.releaseCamera()
	s.publish(snap)
	s.record(snap, domain.ReasonNone, out.Match, out.ServerAccepted)

	if s.hooks.OnSuccess != nil {
		s.hooks.OnSuccess(out)
	}

	s.mu.Lock()
	if !s.closed {
		s.closeTimer = time.AfterFunc(s.cfg.SuccessCloseDelay, s.Close)
	}
	s.mu.Unlock()
}

// fail moves to a failed status, releases the camera and starts the
// auto-close countdown.
func (s *Session) fail(status domain.SessionStatus, reason domain.FailureReason, base string) {
	s.mu.Lock()
	if s.closed || !canTransition(s.status, status) {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.reason = reason
	s.failBase = base
	s.remaining = s.cfg.FailCountdown
	s.message = countdownMessage(base, s.remaining)
	closeNow := s.cfg.FailCountdown <= 0
	if !closeNow {
		s.countdown = StartCountdown(s.cfg.FailCountdown, s.cfg.CountdownTick, s.onCountdownTick, s.Close)
	}
	match := s.distance < s.cfg.Threshold
	serverAccepted := s.serverAccepted
	snap := s.touchLocked()
	s.mu.Unlock()

	s.releaseCamera()
	s.publish(snap)
	s.record(snap, reason, match, serverAccepted)

	if closeNow {
		s.Close()
	}
}

func (s *Session) onCountdownTick(remaining int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.remaining = remaining
	s.message = countdownMessage(s.failBase, remaining)
	snap := s.touchLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Session) setMessage(msg string) {
	s.mu.Lock()
	if s.closed || s.status != domain.StatusScanning {
		s.mu.Unlock()
		return
	}
	s.message = msg
	snap := s.touchLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Session) releaseCamera() {
	s.releaseOnce.Do(func() {
		if err := s.camera.Close(); err != nil {
			s.logger.Warn("camera release failed", "error", err)
		}
	})
}

func (s *Session) publish(snap Snapshot) {
	if s.hooks.OnUpdate != nil {
		s.hooks.OnUpdate(snap)
	}
}

// record writes the audit row in the background. Failures are logged only.
func (s *Session) record(snap Snapshot, reason domain.FailureReason, match, serverAccepted bool) {
	if s.deps.Attempts == nil {
		return
	}

	attempt := &domain.VerificationAttempt{
		SessionID:      s.id.String(),
		SubjectID:      s.req.Subject.ID,
		EventID:        s.req.EventID,
		Status:         snap.Status,
		Reason:         reason,
		Match:          match,
		Distance:       snap.Distance,
		ServerAccepted: serverAccepted,
		LatencyMs:      time.Since(s.startedAt).Milliseconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.deps.Attempts.Record(ctx, attempt); err != nil {
			s.logger.Warn("failed to record verification attempt", "error", err)
		}
	}()
}

func (s *Session) touchLocked() Snapshot {
	s.seq++
	s.updatedAt = time.Now()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		SubjectID:      s.req.Subject.ID,
		EventID:        s.req.EventID,
		VerifyOnly:     s.req.VerifyOnly,
		Status:         s.status,
		Message:        s.message,
		Streak:         s.streak,
		RequiredStreak: s.cfg.RequiredStreak,
		Closed:         s.closed,
		Seq:            s.seq,
		UpdatedAt:      s.updatedAt,
	}
	if !math.IsInf(s.distance, 0) && !math.IsNaN(s.distance) {
		d := s.distance
		snap.Distance = &d
	}
	if s.countdown != nil && !s.closed {
		snap.Countdown = s.remaining
	}
	return snap
}
