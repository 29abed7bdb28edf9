// Package attendance is the REST client for the external attendance service.
package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	// RetryBackoff is the first backoff step; later steps double it.
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:5000/api",
		Timeout:      10 * time.Second,
		RetryCount:   2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

type Client struct {
	httpClient *http.Client
	config     Config
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

// MarkEventAttendance posts a face verification result against a calendar
// event. A 4xx answer is a rejection and comes back as an unaccepted
// result carrying the service message; anything else that fails is an error.
func (c *Client) MarkEventAttendance(ctx context.Context, event domain.AttendanceEvent) (*domain.MarkResult, error) {
	if event.EventID == "" {
		return nil, domain.ErrNoTargetEvent
	}

	body := markRequest{
		UserID:    event.SubjectID,
		Success:   event.Match,
		ImageData: event.ImageData,
		Distance:  event.Distance,
	}

	path := "/calendar/attendance/" + url.PathEscape(event.EventID)
	raw, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Rejected() {
			return &domain.MarkResult{Accepted: false, Message: se.Diagnostic()}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var resp markResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &domain.MarkResult{
		Accepted: resp.Success,
		Message:  cleanMessage(resp.Message),
		Record:   json.RawMessage(raw),
	}, nil
}

// DeviceApproved reports whether deviceID has an approved device request
// for subjectID. Requests that name no user approve nobody.
func (c *Client) DeviceApproved(ctx context.Context, subjectID, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}

	var docs []deviceDoc
	if err := c.get(ctx, "/attendance/devices", nil, &docs); err != nil {
		return false, err
	}

	for _, d := range docs {
		if d.Status == "approved" && d.NewDevice.DeviceID == deviceID && string(d.User) == subjectID {
			return true, nil
		}
	}
	return false, nil
}

// Site looks up an attendance location.
func (c *Client) Site(ctx context.Context, locationID string) (domain.AttendanceSite, error) {
	var docs []locationDoc
	if err := c.get(ctx, "/attendance/locations", nil, &docs); err != nil {
		return domain.AttendanceSite{}, err
	}

	for _, d := range docs {
		if string(d.ID) == locationID {
			return d.toDomain(), nil
		}
	}
	return domain.AttendanceSite{}, domain.ErrNotFound.WithMessage("Location not found")
}

// Shift looks up a shift window.
func (c *Client) Shift(ctx context.Context, shiftID string) (domain.ShiftWindow, error) {
	var docs []shiftDoc
	if err := c.get(ctx, "/attendance/shifts", nil, &docs); err != nil {
		return domain.ShiftWindow{}, err
	}

	for _, d := range docs {
		if string(d.ID) == shiftID {
			return d.toDomain(), nil
		}
	}
	return domain.ShiftWindow{}, domain.ErrNotFound.WithMessage("Shift not found")
}

// Log finds one of the subject's attendance logs.
func (c *Client) Log(ctx context.Context, subjectID, logID string) (*domain.AttendanceLog, error) {
	q := url.Values{}
	q.Set("userId", subjectID)

	var docs []logDoc
	if err := c.get(ctx, "/attendance/logs", q, &docs); err != nil {
		return nil, err
	}

	for _, d := range docs {
		if string(d.ID) == logID {
			return d.toDomain(), nil
		}
	}
	return nil, domain.ErrNotFound.WithMessage("Log not found")
}

// Checkin opens an attendance log.
func (c *Client) Checkin(ctx context.Context, req CheckinRequest) (*domain.AttendanceLog, error) {
	return c.submit(ctx, "/attendance/logs/checkin", req)
}

// Checkout closes an attendance log.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (*domain.AttendanceLog, error) {
	return c.submit(ctx, "/attendance/logs/checkout", req)
}

// submit sends a single POST. Writes are never retried.
func (c *Client) submit(ctx context.Context, path string, body interface{}) (*domain.AttendanceLog, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, toAppError(err)
	}

	var doc logDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.ErrAttendanceUnavailable.WithError(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	return doc.toDomain(), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	raw, err := c.doRequestWithRetry(ctx, path, query)
	if err != nil {
		return toAppError(err)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return domain.ErrAttendanceUnavailable.WithError(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	return nil
}

func toAppError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return domain.ErrNotFound.WithMessage(messageOr(se.Diagnostic(), domain.ErrNotFound.Message))
		case se.Rejected():
			return domain.ErrAttendanceRejected.WithMessage(messageOr(se.Diagnostic(), domain.ErrAttendanceRejected.Message))
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.ErrAttendanceUnavailable.WithError(err)
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// calculateBackoff returns base, 2*base, 4*base, ... capped at 5s.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	d := c.config.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}

func (c *Client) doRequestWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		raw, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *StatusError
		if errors.As(err, &se) && se.Rejected() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var msg messageBody
		_ = json.Unmarshal(respBody, &msg)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    cleanMessage(msg.Message),
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// cleanMessage drops the leading glyph placeholder some service messages
// carry ("? Face verification successful").
func cleanMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	return strings.TrimSpace(strings.TrimPrefix(msg, "?"))
}
