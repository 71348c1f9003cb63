package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gentyr/gentyr-sub005/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{ProjectDir: filepath.Join(dir, "project"), ClaudeHome: filepath.Join(dir, "home")}
	return NewServer(NewSources(cfg, zerolog.Nop()), opts, zerolog.Nop()), cfg
}

func writeSnapshotFile(t *testing.T, cfg *config.Config, n int) {
	t.Helper()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var snaps []map[string]any
	for i := 0; i < n; i++ {
		snaps = append(snaps, map[string]any{
			"ts":   start.Add(time.Duration(i) * time.Hour).UnixMilli(),
			"keys": map[string]any{"k1": map[string]any{"5h": 0.1 * float64(i+1), "7d": 0.2}},
		})
	}
	data, err := json.Marshal(map[string]any{"snapshots": snaps})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cfg.StateDir(), 0o755))
	require.NoError(t, os.WriteFile(cfg.SnapshotPath(), data, 0o600))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestEndpoints_EmptyProject(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	for _, path := range []string{
		"/health",
		"/api/trajectory",
		"/api/trajectory/chart",
		"/api/accounts",
		"/api/agents",
		"/api/deputy",
		"/api/testing",
		"/api/sessions",
	} {
		t.Run(path, func(t *testing.T) {
			rr := get(t, h, path)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.True(t, json.Valid(rr.Body.Bytes()))
		})
	}
}

func TestTrajectoryEndpoint_NoData(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr := get(t, s.Handler(), "/api/trajectory")

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["hasData"])
	assert.Equal(t, []any{}, body["snapshots"])
	assert.Nil(t, body["shortWindowTrendPerHour"])
}

func TestChartEndpoint_Limit(t *testing.T) {
	s, cfg := newTestServer(t, Options{})
	writeSnapshotFile(t, cfg, 5)

	rr := get(t, s.Handler(), "/api/trajectory/chart?limit=3")
	require.Equal(t, http.StatusOK, rr.Code)

	var series struct {
		ShortWindow []float64 `json:"shortWindow"`
		LongWindow  []float64 `json:"longWindow"`
		Timestamps  []string  `json:"timestamps"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &series))
	require.Len(t, series.ShortWindow, 3)
	assert.Len(t, series.LongWindow, 3)
	assert.Len(t, series.Timestamps, 3)
	assert.InDelta(t, 50.0, series.ShortWindow[2], 1e-9)
	assert.InDelta(t, 20.0, series.LongWindow[0], 1e-9)
}

func TestChartEndpoint_InvalidLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/trajectory/chart?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/trajectory/chart?limit=-1").Code)
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, defaultChartLimit, n)

	n, err = parseLimit("100000")
	require.NoError(t, err)
	assert.Equal(t, maxChartLimit, n)

	n, err = parseLimit("0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeputyEndpoint_CorruptDatabase(t *testing.T) {
	s, cfg := newTestServer(t, Options{})
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DeputyDBPath()), 0o755))
	require.NoError(t, os.WriteFile(cfg.DeputyDBPath(), []byte(strings.Repeat("not a database ", 100)), 0o600))

	rr := get(t, s.Handler(), "/api/deputy")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()
	get(t, h, "/health")

	rr := get(t, h, "/metrics")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ctodash_http_requests_total")
	assert.Contains(t, rr.Body.String(), `endpoint="/health"`)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/api/unknown").Code)
}

func TestTokenAuth_AllowsHeaderToken(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"ctodash_token_valid"}})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
	req.Host = "example.com:8080"
	req.Header.Set("X-Auth-Token", "ctodash_token_valid")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTokenAuth_AllowsQueryToken(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"ctodash_token_valid"}})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/health?token=ctodash_token_valid", nil)
	req.Host = "example.com:8080"
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTokenAuth_RejectsWhenTokenMissingOrInvalid(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"ctodash_token_valid"}})

	for name, target := range map[string]string{
		"missing": "http://example.com/api/trajectory",
		"invalid": "http://example.com/api/trajectory?token=wrong",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.Host = "example.com:8080"
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestTokenAuth_LoopbackRemoteExempt(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"ctodash_token_valid"}})

	for _, remote := range []string{"127.0.0.1:51234", "[::1]:51234", "127.0.0.5:80"} {
		req := httptest.NewRequest(http.MethodGet, "http://example.com:8080/health", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, remote)
	}
}

func TestTokenAuth_LocalhostHostHeaderFromRemoteRejected(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"secret"}})

	for _, host := range []string{"localhost:8080", "127.0.0.1:8080", "[::1]:8080"} {
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		req.Host = host
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, host)
	}
}

func TestValidToken(t *testing.T) {
	s, _ := newTestServer(t, Options{RequireAuth: true, Tokens: []string{"alpha", "beta"}})

	assert.True(t, s.validToken("alpha"))
	assert.True(t, s.validToken("beta"))
	assert.False(t, s.validToken("alph"))
	assert.False(t, s.validToken(""))
}
