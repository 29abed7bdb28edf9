package capture

import (
	"context"
	"sync"
	"time"
)

// DefaultStaleAfter is how long a pushed frame stays current.
const DefaultStaleAfter = 3 * time.Second

// Buffer is a Camera fed by frames the client pushes over HTTP or WebSocket.
// It holds only the most recent frame. A frame older than staleAfter is
// reported as ErrDetached so a frozen client never builds a streak.
type Buffer struct {
	mu         sync.Mutex
	frame      []byte
	receivedAt time.Time
	opened     bool
	closed     bool
	staleAfter time.Duration
	now        func() time.Time
}

func NewBuffer(staleAfter time.Duration) *Buffer {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Buffer{
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (b *Buffer) Open(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.opened = true
	return nil
}

// Push stores frame as the current one.
func (b *Buffer) Push(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.frame = append(b.frame[:0], frame...)
	b.receivedAt = b.now()
	return nil
}

func (b *Buffer) Frame(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if !b.opened || len(b.frame) == 0 || b.now().Sub(b.receivedAt) > b.staleAfter {
		return nil, ErrDetached
	}

	out := make([]byte, len(b.frame))
	copy(out, b.frame)
	return out, nil
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.frame = nil
	return nil
}
