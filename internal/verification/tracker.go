package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// TickOutcome classifies a single sample.
type TickOutcome int

const (
	// TickDetached means the surface had nothing to sample. The streak is kept.
	TickDetached TickOutcome = iota
	// TickMiss means no usable descriptor. The streak resets.
	TickMiss
	// TickHit means a usable descriptor below the streak requirement.
	TickHit
	// TickAccepted means the streak requirement was met and verification may start.
	TickAccepted
	// TickBusy means the requirement was met while a verification was already in flight.
	TickBusy
)

func (o TickOutcome) String() string {
	switch o {
	case TickDetached:
		return "detached"
	case TickMiss:
		return "miss"
	case TickHit:
		return "hit"
	case TickAccepted:
		return "accepted"
	case TickBusy:
		return "busy"
	}
	return "unknown"
}

// TickResult is reported after every sample.
type TickResult struct {
	Outcome TickOutcome
	Streak  int
	// Err is set when sampling itself failed rather than finding no face.
	Err error
}

// FrameSource is the part of a camera the tracker samples.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// Tracker counts consecutive frames that yield a usable descriptor. Its
// state is owned by the goroutine calling Tick or Run.
type Tracker struct {
	frames   FrameSource
	source   provider.DescriptorSource
	required int
	interval time.Duration
	acquire  func() bool
	logger   *slog.Logger

	streak    int
	lastDesc  domain.Descriptor
	lastFrame []byte
}

// NewTracker creates a tracker. acquire is called when the streak requirement
// is met and must return true only if no verification is in flight.
func NewTracker(frames FrameSource, source provider.DescriptorSource, required int, interval time.Duration, acquire func() bool, logger *slog.Logger) *Tracker {
	if required < 1 {
		required = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		frames:   frames,
		source:   source,
		required: required,
		interval: interval,
		acquire:  acquire,
		logger:   logger,
	}
}

// Streak returns the current run of consecutive hits.
func (t *Tracker) Streak() int {
	return t.streak
}

// Last returns the descriptor and frame from the most recent hit.
func (t *Tracker) Last() (domain.Descriptor, []byte) {
	return t.lastDesc, t.lastFrame
}

// Tick performs exactly one sample.
func (t *Tracker) Tick(ctx context.Context) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			t.streak = 0
			res = TickResult{Outcome: TickMiss, Err: fmt.Errorf("sample panic: %v", r)}
			t.logger.Debug("sample panicked", "panic", r)
		}
	}()

	frame, err := t.frames.Frame(ctx)
	if errors.Is(err, capture.ErrDetached) {
		return TickResult{Outcome: TickDetached, Streak: t.streak}
	}
	if err != nil {
		t.streak = 0
		t.logger.Debug("sample failed", "error", err)
		return TickResult{Outcome: TickMiss, Err: err}
	}

	desc, err := t.source.Describe(ctx, frame)
	if err != nil || !desc.WellFormed() {
		t.streak = 0
		if err != nil && !errors.Is(err, provider.ErrNoFace) && !errors.Is(err, provider.ErrMultipleFaces) {
			t.logger.Debug("descriptor extraction failed", "error", err)
			return TickResult{Outcome: TickMiss, Err: err}
		}
		return TickResult{Outcome: TickMiss}
	}

	t.streak++
	t.lastDesc = desc.Clone()
	t.lastFrame = frame

	if t.streak < t.required {
		return TickResult{Outcome: TickHit, Streak: t.streak}
	}
	if t.acquire != nil && !t.acquire() {
		return TickResult{Outcome: TickBusy, Streak: t.streak}
	}
	return TickResult{Outcome: TickAccepted, Streak: t.streak}
}

// Run samples every interval until ctx is done or onTick returns false. The
// next sample is armed only after the current one has resolved.
func (t *Tracker) Run(ctx context.Context, onTick func(TickResult) bool) {
	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res := t.Tick(ctx)
		if ctx.Err() != nil {
			return
		}
		if !onTick(res) {
			return
		}

		timer.Reset(t.interval)
	}
}
