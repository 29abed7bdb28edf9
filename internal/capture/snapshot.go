package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxSnapshotSize = 8 * 1024 * 1024

// Snapshot is a Camera backed by an IP camera's still-image URL.
type Snapshot struct {
	url        string
	httpClient *http.Client

	mu     sync.Mutex
	opened bool
	closed bool
}

func NewSnapshot(url string, timeout time.Duration) *Snapshot {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Snapshot{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Open probes the camera once. Authentication failures map to ErrPermissionDenied.
func (s *Snapshot) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	if _, err := s.fetch(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

func (s *Snapshot) Frame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	closed, opened := s.closed, s.opened
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if !opened {
		return nil, ErrDetached
	}
	return s.fetch(ctx)
}

func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Snapshot) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrPermissionDenied
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetch snapshot: camera returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return body, nil
}
