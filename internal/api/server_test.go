package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hostwatch/hostwatch/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(":0", zerolog.Nop())
	rec := serve(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestStatus_ReportsLatestCycles(t *testing.T) {
	s := NewServer(":0", zerolog.Nop())
	s.SetHostname("web-01")
	s.RecordCycle(CycleStatus{Job: "resources", At: time.Now(), OK: true, Summary: "first"})
	s.RecordCycle(CycleStatus{Job: "resources", At: time.Now(), OK: false, Summary: "sampling failed"})

	out := decode(t, serve(s, http.MethodGet, "/status"))
	assert.Equal(t, "web-01", out["hostname"])

	cycles := out["cycles"].(map[string]interface{})
	require.Len(t, cycles, 1)
	res := cycles["resources"].(map[string]interface{})
	assert.Equal(t, false, res["ok"])
	assert.Equal(t, "sampling failed", res["summary"])
}

func TestLogsAPI_Limit(t *testing.T) {
	buf := logging.NewBuffer(10, zerolog.InfoLevel)
	logger := zerolog.New(buf)
	logger.Info().Str("component", "resources").Msg("first")
	logger.Warn().Msg("second")
	logger.Error().Err(errors.New("boom")).Msg("third")

	s := NewServer(":0", zerolog.Nop())
	s.SetLogBuffer(buf)

	out := decode(t, serve(s, http.MethodGet, "/api/logs?limit=2"))
	assert.Equal(t, float64(2), out["count"])
	entries := out["entries"].([]interface{})
	last := entries[1].(map[string]interface{})
	assert.Equal(t, "third", last["message"])
	assert.Equal(t, "error", last["level"])
	assert.Equal(t, "boom", last["error"])
}

func TestReload(t *testing.T) {
	s := NewServer(":0", zerolog.Nop())
	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodGet, "/api/reload").Code)
	assert.Equal(t, http.StatusNotImplemented, serve(s, http.MethodPost, "/api/reload").Code)

	calls := 0
	s.SetReloadFunc(func() error {
		calls++
		if calls > 1 {
			return errors.New("check_count must be >= 1")
		}
		return nil
	})
	assert.Equal(t, http.StatusOK, serve(s, http.MethodPost, "/api/reload").Code)

	rec := serve(s, http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "check_count")
}

func TestRun(t *testing.T) {
	var triggered []string
	s := NewServer(":0", zerolog.Nop())
	s.SetTriggerFunc(func(job string) bool {
		if job != "network" {
			return false
		}
		triggered = append(triggered, job)
		return true
	})

	assert.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/api/run/network").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodPost, "/api/run/bogus").Code)
	assert.Equal(t, []string{"network"}, triggered)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2h5m0s", formatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "3d", formatDuration(72*time.Hour))
	assert.Equal(t, "12d 4h", formatDuration(12*24*time.Hour+4*time.Hour))
}
