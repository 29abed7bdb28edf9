package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

var jpegFrame = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, make([]byte, 64)...)

func descriptorOf(fill float64) domain.Descriptor {
	d := make(domain.Descriptor, domain.DescriptorLength)
	for i := range d {
		d[i] = fill
	}
	return d
}

type fakeCamera struct {
	mu       sync.Mutex
	frame    []byte
	frameErr error
	openErr  error
	opened   int
	closed   int
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{frame: jpegFrame}
}

func (c *fakeCamera) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	return c.openErr
}

func (c *fakeCamera) Frame(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.frameErr
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeCamera) counts() (opened, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

type step struct {
	desc  domain.Descriptor
	err   error
	panic bool
	delay time.Duration
}

// scriptedSource replays steps in order and repeats the last one.
type scriptedSource struct {
	mu       sync.Mutex
	steps    []step
	calls    int
	inFlight int
	maxSeen  int
}

func (s *scriptedSource) Describe(ctx context.Context, _ []byte) (domain.Descriptor, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	st := s.steps[i]
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if st.delay > 0 {
		time.Sleep(st.delay)
	}
	if st.panic {
		panic("detector crashed")
	}
	return st.desc, st.err
}

func (s *scriptedSource) stats() (calls, maxInFlight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.maxSeen
}

type MockReferences struct {
	mock.Mock
}

func (m *MockReferences) Resolve(ctx context.Context, subject domain.Subject) (domain.Descriptor, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Descriptor), args.Error(1)
}

type MockMarker struct {
	mock.Mock
}

func (m *MockMarker) MarkEventAttendance(ctx context.Context, event domain.AttendanceEvent) (*domain.MarkResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MarkResult), args.Error(1)
}

// blockingMarker waits for the request context to end.
type blockingMarker struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (b *blockingMarker) MarkEventAttendance(ctx context.Context, _ domain.AttendanceEvent) (*domain.MarkResult, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingMarker) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type recordingAttempts struct {
	mu       sync.Mutex
	attempts []*domain.VerificationAttempt
}

func (r *recordingAttempts) Record(_ context.Context, a *domain.VerificationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *recordingAttempts) all() []*domain.VerificationAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.VerificationAttempt(nil), r.attempts...)
}

// snapshots collects published snapshots.
type snapshots struct {
	mu    sync.Mutex
	items []Snapshot
}

func (s *snapshots) add(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, snap)
}

func (s *snapshots) statuses() []domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SessionStatus
	for _, snap := range s.items {
		if len(out) == 0 || out[len(out)-1] != snap.Status {
			out = append(out, snap.Status)
		}
	}
	return out
}

func (s *snapshots) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.items))
	for _, snap := range s.items {
		out = append(out, snap.Message)
	}
	return out
}

func fastConfig() Config {
	return Config{
		SampleInterval:    5 * time.Millisecond,
		RequiredStreak:    2,
		Threshold:         0.45,
		FailCountdown:     2,
		CountdownTick:     10 * time.Millisecond,
		SuccessCloseDelay: 20 * time.Millisecond,
	}
}

func waitClosed(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close")
	}
}

var errBoom = errors.New("boom")
