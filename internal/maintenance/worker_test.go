package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReferences struct {
	mock.Mock
}

func (m *MockReferences) PurgeUnusedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockAttempts struct {
	mock.Mock
}

func (m *MockAttempts) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockReaper struct {
	mock.Mock
}

func (m *MockReaper) Reap(retention, maxLifetime time.Duration) int {
	args := m.Called(retention, maxLifetime)
	return args.Int(0)
}

func newTestWorker(refs *MockReferences, attempts *MockAttempts, reaper *MockReaper) (*Worker, time.Time) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w := NewWorker(refs, attempts, reaper, DefaultConfig(), nil)
	w.now = func() time.Time { return now }
	return w, now
}

func TestWorker_PurgeReferences(t *testing.T) {
	refs := new(MockReferences)
	w, now := newTestWorker(refs, new(MockAttempts), new(MockReaper))

	refs.On("PurgeUnusedSince", mock.Anything, now.Add(-30*time.Minute)).Return(int64(4), nil).Once()
	refs.On("PurgeUnusedSince", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset")).Once()

	w.purgeReferences(context.Background())
	w.purgeReferences(context.Background())

	refs.AssertExpectations(t)
}

func TestWorker_PurgeAttempts(t *testing.T) {
	attempts := new(MockAttempts)
	w, now := newTestWorker(new(MockReferences), attempts, new(MockReaper))

	attempts.On("PurgeOlderThan", mock.Anything, now.Add(-30*24*time.Hour)).Return(int64(120), nil)

	w.purgeAttempts(context.Background())

	attempts.AssertExpectations(t)
}

func TestWorker_SkipsWhenCancelled(t *testing.T) {
	refs := new(MockReferences)
	attempts := new(MockAttempts)
	w, _ := newTestWorker(refs, attempts, new(MockReaper))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.purgeReferences(ctx)
	w.purgeAttempts(ctx)

	refs.AssertNotCalled(t, "PurgeUnusedSince", mock.Anything, mock.Anything)
	attempts.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything)
}

func TestWorker_ReapSessions(t *testing.T) {
	reaper := new(MockReaper)
	w, _ := newTestWorker(new(MockReferences), new(MockAttempts), reaper)

	reaper.On("Reap", 5*time.Minute, 10*time.Minute).Return(3)

	w.reapSessions()

	reaper.AssertExpectations(t)
}

func TestWorker_StartSchedulesJobs(t *testing.T) {
	refs := new(MockReferences)
	attempts := new(MockAttempts)
	reaper := new(MockReaper)
	// interval jobs fire once immediately on start
	refs.On("PurgeUnusedSince", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	attempts.On("PurgeOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	reaper.On("Reap", mock.Anything, mock.Anything).Return(0).Maybe()

	w, _ := newTestWorker(refs, attempts, reaper)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, 3, w.scheduler.Len())
	assert.True(t, w.scheduler.IsRunning())
}

func TestWorker_StartWithoutDatabase(t *testing.T) {
	reaper := new(MockReaper)
	reaper.On("Reap", mock.Anything, mock.Anything).Return(0).Maybe()

	w := NewWorker(nil, nil, reaper, DefaultConfig(), nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, 1, w.scheduler.Len())
}

func TestWorker_StartRejectsBadPurgeTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AttemptPurgeAt = "25:99"

	w := NewWorker(nil, new(MockAttempts), nil, cfg, nil)
	assert.Error(t, w.Start(context.Background()))
}
