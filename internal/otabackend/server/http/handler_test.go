package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
)

type fakeService struct {
	startErr  error
	rebootErr error
	started   []ota.StartRequest
	reboots   int
}

func (f *fakeService) Start(_ context.Context, runID, url, target string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, ota.StartRequest{OTAID: runID, URL: url, TargetVersion: target})
	return nil
}

func (f *fakeService) Status(context.Context) ota.Status {
	return ota.Status{
		State: core.RunState{CurrentVersion: "1.0", Phase: core.PhaseApply, LastEvent: core.EventStart, ActiveRunID: "r1"},
		Slots: core.SlotStatus{Compatible: "ivi", BootedSlot: "A"},
	}
}

func (f *fakeService) RequestReboot(context.Context) error {
	f.reboots++
	return f.rebootErr
}

func do(t *testing.T, svc ota.Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/ota/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ota.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "APPLY", *resp.Phase)
	assert.Equal(t, "START", *resp.Event)
	assert.Equal(t, "r1", *resp.ActiveOTAID)
	assert.Equal(t, "A", *resp.CurrentSlot)
	assert.Nil(t, resp.LastError)
}

func TestStart(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodPost, "/ota/start", `{"ota_id":"r1","url":"http://b/1.raucb","target_version":"2.0"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"ota_id":"r1"}`, rec.Body.String())
	assert.Equal(t, []ota.StartRequest{{OTAID: "r1", URL: "http://b/1.raucb", TargetVersion: "2.0"}}, svc.started)
}

func TestStart_GeneratesRunID(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodPost, "/ota/start", `{"url":"http://b/1.raucb","target_version":"2.0"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.started, 1)
	assert.NotEmpty(t, svc.started[0].OTAID)

	var resp ota.StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, svc.started[0].OTAID, resp.OTAID)
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name     string
		svc      *fakeService
		body     string
		wantCode int
	}{
		{"malformed", &fakeService{}, `{`, http.StatusBadRequest},
		{"missing url", &fakeService{}, `{"target_version":"2.0"}`, http.StatusBadRequest},
		{"already running", &fakeService{startErr: ota.ErrAlreadyRunning}, `{"url":"u","target_version":"2.0"}`, http.StatusConflict},
		{"internal", &fakeService{startErr: errors.New("boom")}, `{"url":"u","target_version":"2.0"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.svc, http.MethodPost, "/ota/start", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), "detail")
		})
	}
}

func TestReboot(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodPost, "/ota/reboot", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.reboots)

	svc.rebootErr = errors.New("denied")
	rec = do(t, svc, http.MethodPost, "/ota/reboot", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/ota/start"},
		{http.MethodGet, "/ota/reboot"},
		{http.MethodPost, "/ota/status"},
		{http.MethodPost, "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, &fakeService{}, tt.method, tt.path, "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}

	rec := do(t, &fakeService{}, http.MethodGet, "/ota/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ota_telemetry_queue_length")
}
