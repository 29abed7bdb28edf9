package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:      serverURL,
		Token:        "svc-token",
		Timeout:      2 * time.Second,
		RetryCount:   2,
		RetryBackoff: time.Millisecond,
	})
}

func TestClient_MarkEventAttendance(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/calendar/attendance/evt-1", r.URL.Path)
			assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))

			var body markRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user-1", body.UserID)
			assert.True(t, body.Success)
			assert.Equal(t, "data:image/jpeg;base64,AAA", body.ImageData)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"message":"? Face verification successful","imageUrl":null}`))
		}))
		defer server.Close()

		res, err := newTestClient(server.URL+"/api").MarkEventAttendance(context.Background(), domain.AttendanceEvent{
			SubjectID: "user-1",
			EventID:   "evt-1",
			ImageData: "data:image/jpeg;base64,AAA",
			Match:     true,
		})

		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, "Face verification successful", res.Message)
		assert.JSONEq(t, `{"success":true,"message":"? Face verification successful","imageUrl":null}`, string(res.Record))
	})

	t.Run("rejected by service", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"message":"Access denied: Event belongs to a different workspace"}`))
		}))
		defer server.Close()

		res, err := newTestClient(server.URL).MarkEventAttendance(context.Background(), domain.AttendanceEvent{
			SubjectID: "user-1",
			EventID:   "evt-1",
		})

		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, "Access denied: Event belongs to a different workspace", res.Message)
	})

	t.Run("rejection without message keeps the body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("Attendance window closed for this event\n"))
		}))
		defer server.Close()

		res, err := newTestClient(server.URL).MarkEventAttendance(context.Background(), domain.AttendanceEvent{
			SubjectID: "user-1",
			EventID:   "evt-1",
		})

		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, "Attendance window closed for this event", res.Message)
	})

	t.Run("server error is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).MarkEventAttendance(context.Background(), domain.AttendanceEvent{
			SubjectID: "user-1",
			EventID:   "evt-1",
		})

		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("missing event id", func(t *testing.T) {
		_, err := newTestClient("http://unused").MarkEventAttendance(context.Background(), domain.AttendanceEvent{SubjectID: "user-1"})
		assert.ErrorIs(t, err, domain.ErrNoTargetEvent)
	})
}

func TestStatusError_Diagnostic(t *testing.T) {
	long := strings.Repeat("x", maxDiagnostic+50)

	tests := []struct {
		name string
		err  StatusError
		want string
	}{
		{"message wins", StatusError{StatusCode: 400, Message: "Bad event", Body: `{"message":"Bad event"}`}, "Bad event"},
		{"plain body", StatusError{StatusCode: 409, Body: "  closed  "}, "closed"},
		{"json without message", StatusError{StatusCode: 422, Body: `{"error":"late"}`}, `{"error":"late"}`},
		{"long body is bounded", StatusError{StatusCode: 502, Body: long}, long[:maxDiagnostic] + "..."},
		{"empty", StatusError{StatusCode: 500}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Diagnostic())
		})
	}

	plain := &StatusError{StatusCode: 503, Body: "upstream down"}
	assert.Contains(t, plain.Error(), "upstream down")
}

func TestClient_DeviceApproved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/devices", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"_id":"d1","user":{"_id":"user-1","name":"Ana"},"status":"pending","newDevice":{"deviceId":"kiosk-2"}},
			{"_id":"d2","user":"user-1","status":"approved","newDevice":{"deviceId":"kiosk-1"}},
			{"_id":"d3","user":"user-2","status":"approved","newDevice":{"deviceId":"kiosk-9"}},
			{"_id":"d4","status":"approved","newDevice":{"deviceId":"kiosk-5"}}
		]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	tests := []struct {
		name    string
		subject string
		device  string
		want    bool
	}{
		{"approved device", "user-1", "kiosk-1", true},
		{"pending device", "user-1", "kiosk-2", false},
		{"someone else's device", "user-1", "kiosk-9", false},
		{"empty device", "user-1", "", false},
		{"request without user", "user-1", "kiosk-5", false},
		{"request without user for another subject", "some-other-user", "kiosk-5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := c.DeviceApproved(context.Background(), tt.subject, tt.device)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClient_SiteAndShift(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/attendance/locations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"_id":"loc-1","name":"HQ","latitude":-23.5505,"longitude":-46.6333,"radiusMeters":120},
			{"_id":"loc-2","name":"Annex","latitude":-23.56,"longitude":-46.64}
		]`))
	})
	mux.HandleFunc("/attendance/shifts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"sh-1","name":"Night","startMinutes":1320,"endMinutes":360}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	site, err := c.Site(ctx, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "HQ", site.Name)
	assert.Equal(t, 120.0, site.EffectiveRadius())

	annex, err := c.Site(ctx, "loc-2")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRadiusMeters, annex.EffectiveRadius())

	_, err = c.Site(ctx, "loc-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	shift, err := c.Shift(ctx, "sh-1")
	require.NoError(t, err)
	assert.True(t, shift.Overnight())
	assert.Equal(t, 480, shift.ScheduledMinutes())
}

func TestClient_LogDecodesPopulatedRefs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`[{
			"_id":"log-1",
			"user":{"_id":"user-1","name":"Ana"},
			"shift":{"_id":"sh-1","name":"Day","startMinutes":540,"endMinutes":1080},
			"location":"loc-1",
			"status":"in-progress",
			"checkin":{"time":"2026-03-02T09:07:00Z","photos":[],"latitude":-23.55,"longitude":-46.63,"deviceId":"kiosk-1"},
			"checkout":{"time":null,"photos":[],"latitude":null,"longitude":null,"deviceId":""},
			"lateMinutes":7
		}]`))
	}))
	defer server.Close()

	log, err := newTestClient(server.URL).Log(context.Background(), "user-1", "log-1")
	require.NoError(t, err)

	assert.Equal(t, "sh-1", log.ShiftID)
	assert.Equal(t, "loc-1", log.LocationID)
	assert.Equal(t, "user-1", log.SubjectID)
	assert.Equal(t, "kiosk-1", log.Checkin.DeviceID)
	assert.Nil(t, log.Checkout, "empty checkout is absent")
	assert.False(t, log.Completed())
	require.NotNil(t, log.LateMinutes)
	assert.Equal(t, 7, *log.LateMinutes)
}

func TestClient_GetRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ok, err := newTestClient(server.URL).DeviceApproved(context.Background(), "user-1", "kiosk-1")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Shift(context.Background(), "sh-1")

	assert.ErrorIs(t, err, domain.ErrAttendanceUnavailable)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_CheckinCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/attendance/logs/checkin", func(w http.ResponseWriter, r *http.Request) {
		var req CheckinRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "loc-1", req.LocationID)
		assert.Equal(t, "kiosk-1", req.DeviceID)
		assert.NotNil(t, req.Latitude)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"log-1","user":"user-1","location":"loc-1","status":"in-progress",
			"checkin":{"time":"2026-03-02T09:00:00Z","deviceId":"kiosk-1"}}`))
	})
	mux.HandleFunc("/attendance/logs/checkout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Already checked out"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server.URL)
	lat, lon := -23.55, -46.63

	log, err := c.Checkin(context.Background(), CheckinRequest{
		SubjectID:  "user-1",
		LocationID: "loc-1",
		DeviceID:   "kiosk-1",
		Latitude:   &lat,
		Longitude:  &lon,
	})
	require.NoError(t, err)
	assert.Equal(t, "log-1", log.ID)
	assert.Equal(t, domain.LogInProgress, log.Status)

	_, err = c.Checkout(context.Background(), CheckoutRequest{SubjectID: "user-1", LogID: "log-1", DeviceID: "kiosk-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAttendanceRejected)

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Already checked out", appErr.Message)
}

func TestRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want ref
	}{
		{`"abc"`, "abc"},
		{`null`, ""},
		{`{"_id":"abc","name":"x"}`, "abc"},
		{`{"id":"xyz"}`, "xyz"},
	}

	for _, tt := range tests {
		var r ref
		require.NoError(t, json.Unmarshal([]byte(tt.in), &r), tt.in)
		assert.Equal(t, tt.want, r, tt.in)
	}
}
