package verification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// OpenRequest describes a session to open. An empty CameraURL means the
// client pushes frames itself.
type OpenRequest struct {
	Subject    domain.Subject
	EventID    string
	VerifyOnly bool
	CameraURL  string
}

type ManagerOptions struct {
	// Publish receives every snapshot of every session.
	Publish func(Snapshot)
	// OnSuccess receives every successful outcome.
	OnSuccess func(Outcome)
	// FrameStaleAfter bounds how long a pushed frame stays current.
	FrameStaleAfter time.Duration
	// SnapshotTimeout bounds IP camera requests.
	SnapshotTimeout time.Duration
}

type entry struct {
	session  *Session
	buffer   *capture.Buffer
	consumed bool
}

// Manager owns the live sessions of the gate.
type Manager struct {
	ctx    context.Context
	deps   Dependencies
	cfg    Config
	opts   ManagerOptions
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// NewManager creates a manager. Sessions inherit ctx, so cancelling it stops
// every session's background work.
func NewManager(ctx context.Context, deps Dependencies, cfg Config, opts ManagerOptions) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		ctx:      ctx,
		deps:     deps,
		cfg:      cfg,
		opts:     opts,
		logger:   deps.Logger,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// Open creates and starts a session.
func (m *Manager) Open(req OpenRequest) (*Session, error) {
	if req.Subject.ID == "" {
		return nil, domain.ErrValidationFailed.WithMessage("subject_id is required")
	}

	var (
		camera capture.Camera
		buffer *capture.Buffer
	)
	if req.CameraURL != "" {
		camera = capture.NewSnapshot(req.CameraURL, m.opts.SnapshotTimeout)
	} else {
		buffer = capture.NewBuffer(m.opts.FrameStaleAfter)
		camera = buffer
	}

	hooks := Hooks{
		OnUpdate:  m.opts.Publish,
		OnSuccess: m.opts.OnSuccess,
	}

	s := NewSession(m.ctx, Request{
		Subject:    req.Subject,
		EventID:    req.EventID,
		VerifyOnly: req.VerifyOnly,
	}, camera, m.deps, m.cfg, hooks)

	m.mu.Lock()
	m.sessions[s.ID()] = &entry{session: s, buffer: buffer}
	m.mu.Unlock()

	m.logger.Info("verification session opened",
		"session_id", s.ID(),
		"subject_id", req.Subject.ID,
		"event_id", req.EventID,
		"verify_only", req.VerifyOnly,
		"ip_camera", req.CameraURL != "",
	)

	s.Start()
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e.session, nil
}

// Snapshot returns the current view of a session.
func (m *Manager) Snapshot(id uuid.UUID) (Snapshot, error) {
	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Close closes a session. Closing an already closed session is not an error.
func (m *Manager) Close(id uuid.UUID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}

// PushFrame hands a client frame to a session's buffer.
func (m *Manager) PushFrame(id uuid.UUID, frame []byte) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	if e.buffer == nil {
		return domain.ErrBadRequest.WithMessage("session reads frames from an IP camera")
	}
	if err := e.buffer.Push(frame); err != nil {
		return domain.ErrSessionClosed
	}
	return nil
}

// TakeOutcome returns the success outcome of a verify-only session that
// belongs to subjectID. Each outcome can be taken once.
func (m *Manager) TakeOutcome(id uuid.UUID, subjectID string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return Outcome{}, domain.ErrSessionNotFound
	}

	out, ok := e.session.Outcome()
	if !ok || e.consumed || !out.VerifyOnly || out.SubjectID != subjectID {
		return Outcome{}, domain.ErrSessionNotVerified
	}

	e.consumed = true
	return out, nil
}

// Reap forgets sessions closed for longer than retention and closes
// sessions that have been open longer than maxLifetime. It returns the
// number of sessions removed.
func (m *Manager) Reap(retention, maxLifetime time.Duration) int {
	now := time.Now()

	m.mu.Lock()
	var stale []*Session
	removed := 0
	for id, e := range m.sessions {
		closedAt, closed := e.session.ClosedAt()
		switch {
		case closed && now.Sub(closedAt) > retention:
			delete(m.sessions, id)
			removed++
		case !closed && maxLifetime > 0 && now.Sub(e.session.StartedAt()) > maxLifetime:
			stale = append(stale, e.session)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.logger.Warn("closing abandoned verification session", "session_id", s.ID())
		s.Close()
	}

	return removed
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
