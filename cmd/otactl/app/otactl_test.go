package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	httpserver "github.com/autopeer-io/ota-backend/internal/otabackend/server/http"
)

type fakeService struct {
	mu       sync.Mutex
	startErr error
	started  []ota.StartRequest
	reboots  int
}

func (f *fakeService) Start(_ context.Context, runID, url, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, ota.StartRequest{OTAID: runID, URL: url, TargetVersion: target})
	return nil
}

func (f *fakeService) Status(context.Context) ota.Status {
	return ota.Status{
		State: core.RunState{CurrentVersion: "1.0.0", TargetVersion: "2.0.0", Phase: core.PhaseDownload, LastEvent: core.EventStart, ActiveRunID: "run-7"},
		Slots: core.SlotStatus{
			Compatible: "vw-ivi",
			BootedSlot: "A",
			Slots: []core.Slot{
				{Name: "rootfs.0", State: "booted", BootName: "A", BootStatus: "good"},
				{Name: "rootfs.1", State: "inactive", BootName: "B"},
			},
		},
	}
}

func (f *fakeService) RequestReboot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reboots++
	return nil
}

func (f *fakeService) snapshot() ([]ota.StartRequest, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ota.StartRequest(nil), f.started...), f.reboots
}

func runOtactl(t *testing.T, svc ota.Service, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(httpserver.NewRouter(svc))
	t.Cleanup(srv.Close)

	cmd := NewOtactlCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--http.addr", strings.TrimPrefix(srv.URL, "http://")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusTable(t *testing.T) {
	out, err := runOtactl(t, &fakeService{}, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "DOWNLOAD")
	assert.Contains(t, out, "run-7")
	assert.Contains(t, out, "rootfs.1")
	assert.Contains(t, out, "BOOT STATUS")
	assert.Regexp(t, `rootfs\.0\s+booted\s+A\s+-\s+good`, out)
	assert.Regexp(t, `LAST ERROR:\s+-`, out)
}

func TestStatusJSON(t *testing.T) {
	out, err := runOtactl(t, &fakeService{}, "status", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"active_ota_id": "run-7"`)
	assert.Contains(t, out, `"last_error": null`)
}

func TestStatusUnknownOutput(t *testing.T) {
	_, err := runOtactl(t, &fakeService{}, "status", "-o", "yaml")
	assert.EqualError(t, err, `unknown output format "yaml"`)
}

func TestStart(t *testing.T) {
	svc := &fakeService{}
	out, err := runOtactl(t, svc, "start", "--url", "http://repo/b.raucb", "--version", "2.0.0", "--id", "run-9")
	require.NoError(t, err)
	assert.Contains(t, out, "started run-9")

	started, _ := svc.snapshot()
	require.Len(t, started, 1)
	assert.Equal(t, ota.StartRequest{OTAID: "run-9", URL: "http://repo/b.raucb", TargetVersion: "2.0.0"}, started[0])
}

func TestStartGeneratesID(t *testing.T) {
	svc := &fakeService{}
	_, err := runOtactl(t, svc, "start", "--url", "http://repo/b.raucb", "--version", "2.0.0")
	require.NoError(t, err)
	started, _ := svc.snapshot()
	require.Len(t, started, 1)
	assert.NotEmpty(t, started[0].OTAID)
}

func TestStartMissingURL(t *testing.T) {
	svc := &fakeService{}
	_, err := runOtactl(t, svc, "start", "--version", "2.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
	started, _ := svc.snapshot()
	assert.Empty(t, started)
}

func TestStartConflict(t *testing.T) {
	_, err := runOtactl(t, &fakeService{startErr: ota.ErrAlreadyRunning}, "start", "--url", "http://x", "--version", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "OTA already running")
}

func TestReboot(t *testing.T) {
	svc := &fakeService{}
	out, err := runOtactl(t, svc, "reboot")
	require.NoError(t, err)
	assert.Contains(t, out, "reboot requested")
	_, reboots := svc.snapshot()
	assert.Equal(t, 1, reboots)
}
