package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
)

func setupSessionApp(sessions *MockSessionManager, frames *FrameLimiter) *SessionHandler {
	return NewSessionHandler(sessions, frames, testLogger())
}

func TestSessionHandler_Open(t *testing.T) {
	sessionID := uuid.New()

	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockSessionManager)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "opens verify-only session",
			body: OpenSessionRequest{SubjectID: " user-1 ", ImageURL: "https://cdn.example/u1.jpg", VerifyOnly: true},
			setupMock: func(m *MockSessionManager) {
				m.On("Open", verification.OpenRequest{
					Subject:    domain.Subject{ID: "user-1", EnrollmentImageURL: "https://cdn.example/u1.jpg"},
					VerifyOnly: true,
				}).Return(verification.Snapshot{ID: sessionID, SubjectID: "user-1", Status: domain.StatusScanning, VerifyOnly: true}, nil)
			},
			expectedStatus: 201,
		},
		{
			name: "opens event session with IP camera",
			body: OpenSessionRequest{SubjectID: "user-1", ImageURL: "https://cdn.example/u1.jpg", EventID: "ev-9", CameraURL: "http://10.0.0.5/snapshot.jpg"},
			setupMock: func(m *MockSessionManager) {
				m.On("Open", mock.MatchedBy(func(req verification.OpenRequest) bool {
					return req.EventID == "ev-9" && req.CameraURL == "http://10.0.0.5/snapshot.jpg" && !req.VerifyOnly
				})).Return(verification.Snapshot{ID: sessionID, Status: domain.StatusScanning}, nil)
			},
			expectedStatus: 201,
		},
		{
			name:           "missing subject",
			body:           OpenSessionRequest{ImageURL: "https://cdn.example/u1.jpg"},
			setupMock:      func(m *MockSessionManager) {},
			expectedStatus: 422,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "malformed body",
			body:           "not-an-object",
			setupMock:      func(m *MockSessionManager) {},
			expectedStatus: 400,
			expectedCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(MockSessionManager)
			tt.setupMock(sessions)

			app := newTestApp()
			app.Post("/v1/sessions", setupSessionApp(sessions, nil).Open)

			resp, err := app.Test(jsonRequest("POST", "/v1/sessions", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, resp).Error.Code)
			} else {
				var snap verification.Snapshot
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
				assert.Equal(t, sessionID, snap.ID)
			}

			sessions.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_Get(t *testing.T) {
	sessionID := uuid.New()
	sessions := new(MockSessionManager)
	sessions.On("Snapshot", sessionID).Return(verification.Snapshot{ID: sessionID, Status: domain.StatusFail, Message: "Face verification failed. Auto closing in 4s...", Countdown: 4}, nil)
	sessions.On("Snapshot", mock.Anything).Return(verification.Snapshot{}, domain.ErrSessionNotFound)

	app := newTestApp()
	app.Get("/v1/sessions/:id", setupSessionApp(sessions, nil).Get)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+sessionID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var snap verification.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, domain.StatusFail, snap.Status)
	assert.Equal(t, 4, snap.Countdown)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/sessions/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/sessions/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestSessionHandler_Close(t *testing.T) {
	sessionID := uuid.New()
	sessions := new(MockSessionManager)
	sessions.On("Close", sessionID).Return(nil).Twice()

	app := newTestApp()
	app.Delete("/v1/sessions/:id", setupSessionApp(sessions, nil).Close)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("DELETE", "/v1/sessions/"+sessionID.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode, "close is idempotent")
	}

	sessions.AssertExpectations(t)
}

func TestSessionHandler_PushFrame(t *testing.T) {
	sessionID := uuid.New()
	frame := testJPEG(t)

	t.Run("raw body", func(t *testing.T) {
		sessions := new(MockSessionManager)
		sessions.On("PushFrame", sessionID, frame).Return(nil)

		app := newTestApp()
		app.Post("/v1/sessions/:id/frames", setupSessionApp(sessions, nil).PushFrame)

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/frames", bytes.NewReader(frame))
		req.Header.Set("Content-Type", "image/jpeg")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		sessions.AssertExpectations(t)
	})

	t.Run("multipart", func(t *testing.T) {
		sessions := new(MockSessionManager)
		sessions.On("PushFrame", sessionID, frame).Return(nil)

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("frame", "frame.jpg")
		require.NoError(t, err)
		_, _ = part.Write(frame)
		require.NoError(t, writer.Close())

		app := newTestApp()
		app.Post("/v1/sessions/:id/frames", setupSessionApp(sessions, nil).PushFrame)

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/frames", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		sessions.AssertExpectations(t)
	})

	t.Run("rejects non-image", func(t *testing.T) {
		sessions := new(MockSessionManager)

		app := newTestApp()
		app.Post("/v1/sessions/:id/frames", setupSessionApp(sessions, nil).PushFrame)

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/frames", bytes.NewReader([]byte("hello world")))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		assert.Equal(t, "INVALID_IMAGE", decodeError(t, resp).Error.Code)
		sessions.AssertNotCalled(t, "PushFrame", mock.Anything, mock.Anything)
	})

	t.Run("closed session", func(t *testing.T) {
		sessions := new(MockSessionManager)
		sessions.On("PushFrame", sessionID, frame).Return(domain.ErrSessionClosed)

		app := newTestApp()
		app.Post("/v1/sessions/:id/frames", setupSessionApp(sessions, nil).PushFrame)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/frames", bytes.NewReader(frame)))
		require.NoError(t, err)
		assert.Equal(t, 409, resp.StatusCode)
	})

	t.Run("throttled per session", func(t *testing.T) {
		sessions := new(MockSessionManager)
		sessions.On("PushFrame", mock.Anything, frame).Return(nil)

		app := newTestApp()
		app.Post("/v1/sessions/:id/frames", setupSessionApp(sessions, NewFrameLimiter(0.001, 1)).PushFrame)

		push := func(id uuid.UUID) int {
			resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/frames", bytes.NewReader(frame)))
			require.NoError(t, err)
			return resp.StatusCode
		}

		assert.Equal(t, 202, push(sessionID))
		assert.Equal(t, 429, push(sessionID))
		assert.Equal(t, 202, push(uuid.New()), "other sessions have their own bucket")
	})
}

func TestFrameLimiter(t *testing.T) {
	l := NewFrameLimiter(1000, 0)
	id := uuid.New()

	assert.True(t, l.Allow(id))
	assert.Equal(t, 1, l.limiters.ItemCount())
	assert.True(t, l.Allow(uuid.New()))
	assert.Equal(t, 2, l.limiters.ItemCount())
}
