package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadbridge/cadbridge/internal/config"
	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/shared/types"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	// Empty port range so tests never probe the network.
	cfg.Remote.ScanPortStart = 1
	cfg.Remote.ScanPortEnd = 0
	if mutate != nil {
		mutate(cfg)
	}

	log := logging.NewDefault()
	srv, err := NewServer(cfg, log)
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "cadbridge", body["service"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["instances"])
	assert.Contains(t, body["security"], "read/write allowed outside blocked directories")
}

func TestListInstancesEmpty(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/instances", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(0), body["count"])
}

func TestRescanEmptyRange(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/instances/rescan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestExecuteScript(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/execute", `{"script":"result = 6 * 7"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result types.ExecutionResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, float64(42), result.Value)
}

func TestExecuteScriptError(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/execute", `{"script":"throw new Error('boom')"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result types.ExecutionResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
}

func TestExecuteMissingScript(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/execute", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteUnknownPortRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/execute", `{"script":"result = port","port":19723}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode(t, w)
	errMsg, ok := body["error"].(string)
	require.True(t, ok)
	assert.Contains(t, errMsg, "19723")
}

func TestPropertiesInvalidPort(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/properties/notaport", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPropertiesUnknownPort(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/properties/19731", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocsSearch(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/docs?q=properties", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Greater(t, body["count"], float64(0))
	assert.NotEmpty(t, body["categories"])
}

func TestDocsCategoryFilter(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/docs?category=teamwork", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	commands, ok := body["commands"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, commands)
	for _, raw := range commands {
		cmd := raw.(map[string]any)
		assert.Equal(t, "teamwork", cmd["category"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	do(srv, http.MethodGet, "/", "")

	w := do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cadbridge_http_requests_total")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 2
	})

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		w := do(srv, http.MethodGet, "/health", "")
		codes[w.Code]++
	}
	assert.Greater(t, codes[http.StatusTooManyRequests], 0)
	assert.Greater(t, codes[http.StatusOK], 0)
}

func TestSandboxedModeFromConfig(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.Mode = "sandboxed"
	})

	w := do(srv, http.MethodPost, "/execute", `{"script":"result = typeof eval"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result types.ExecutionResult
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "undefined", result.Value)
}
