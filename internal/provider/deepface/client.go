package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Model    string
	Detector string
	// EnforceDetection makes DeepFace answer 400 when no face is found
	// instead of embedding the whole frame.
	EnforceDetection bool
	RetryCount       int
	// RetryBackoff is the first backoff step; later steps double it.
	RetryBackoff time.Duration
}

// DefaultConfig targets a local DeepFace API.
// Facenet produces the 128 element descriptors the gate compares.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:5005",
		Timeout:          10 * time.Second,
		Model:            "Facenet",
		Detector:         "opencv",
		EnforceDetection: true,
		RetryCount:       2,
		RetryBackoff:     250 * time.Millisecond,
	}
}

const maxBackoff = 4 * time.Second

// Client talks to the /represent endpoint of a DeepFace API.
type Client struct {
	httpClient *http.Client
	config     Config
}

func NewClient(config Config) *Client {
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

// StatusError is returned when DeepFace answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}

// Represent embeds every face DeepFace detects in a JPEG frame.
func (c *Client) Represent(ctx context.Context, image []byte) (*RepresentResponse, error) {
	payload, err := json.Marshal(RepresentRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
		Model:            c.config.Model,
		Detector:         c.config.Detector,
		EnforceDetection: c.config.EnforceDetection,
		Align:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp RepresentResponse
	err = c.retry(ctx, func() error {
		return c.post(ctx, "/represent", payload, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// backoff returns base, 2*base, 4*base, ... capped at maxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// retry runs call until it succeeds, fails permanently or the retries run out.
// 4xx answers and undecodable bodies are permanent.
func (c *Client) retry(ctx context.Context, call func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var se *StatusError
		if errors.As(lastErr, &se) && se.StatusCode < 500 {
			return lastErr
		}
		if errors.Is(lastErr, ErrInvalidResponse) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", ErrDeepFaceUnavailable, lastErr)
}

func (c *Client) post(ctx context.Context, path string, payload []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
