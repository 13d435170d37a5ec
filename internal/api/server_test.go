package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pvbus/pvbus/internal/config"
	"github.com/pvbus/pvbus/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	statuses []scheduler.DeviceStatus
}

func (p *fakeProvider) DeviceStatuses() []scheduler.DeviceStatus {
	return p.statuses
}

func (p *fakeProvider) Metrics() map[string]interface{} {
	return map[string]interface{}{"passes_run": int64(5)}
}

func newTestServer(t *testing.T) (*Server, *fakeProvider) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.FirmwareDir = t.TempDir()
	provider := &fakeProvider{statuses: []scheduler.DeviceStatus{
		{Address: 2, Status: "Online"},
		{Address: 10, Status: "Registered"},
	}}
	return NewServer(cfg, provider, "1.2.3"), provider
}

func TestHandleStatus(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.EqualValues(t, 2, body["deviceCount"])
	assert.NotEmpty(t, body["uptime"])
}

func TestHandleListDevices(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Devices []scheduler.DeviceStatus `json:"devices"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, scheduler.DeviceStatus{Address: 2, Status: "Online"}, body.Devices[0])
	assert.Equal(t, scheduler.DeviceStatus{Address: 10, Status: "Registered"}, body.Devices[1])
}

func TestHandleFirmwareUpload(t *testing.T) {
	server, _ := newTestServer(t)
	payload := []byte("not a real firmware image")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("firmware", "x1air-1.09.bin")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "x1air-1.09.bin", body["file"])
	assert.EqualValues(t, len(payload), body["bytes"])

	staged, err := os.ReadFile(filepath.Join(server.config.API.FirmwareDir, "x1air-1.09.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, staged)
}

func TestHandleFirmwareUploadMissingField(t *testing.T) {
	server, _ := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFirmwareUploadRejectsNonMultipart(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewBufferString("raw"))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
