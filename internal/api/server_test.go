package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/observability"
	"github.com/tphakala/audiorouter/internal/testutil"
	"github.com/tphakala/audiorouter/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Listen = "localhost" }, "invalid listen address"},
		{"zero timeout", func(c *Config) { c.WriteTimeout = 0 }, "timeouts"},
		{"negative rate", func(c *Config) { c.ControlRate = -1 }, "control rate"},
		{"rate disabled", func(c *Config) { c.ControlRate = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := DefaultConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultConfig(), ConfigFromSettings(nil))

	settings := &conf.Settings{Debug: true}
	settings.HTTP.Listen = "0.0.0.0:9000"
	c := ConfigFromSettings(settings)
	assert.Equal(t, "0.0.0.0:9000", c.Listen)
	assert.True(t, c.Debug)
	assert.Equal(t, DefaultBodyLimit, c.BodyLimit)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	c.Listen = "nope"
	_, err := New(c, transport.NewRouter())
	require.Error(t, err)
}

func newTestServer(t *testing.T, c *Config) (*Server, *observability.Metrics) {
	t.Helper()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	router := transport.NewRouter(transport.WithMetrics(m.Transport))
	s, err := New(c, router, WithMetrics(m))
	require.NoError(t, err)
	return s, m
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, DefaultConfig())

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transport", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tempo":120`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "transport_tempo_bpm")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/transport",status_code="200"} 1`)
}

func TestServerBodyLimit(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	c.BodyLimit = "16B"
	s, _ := newTestServer(t, c)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/transport/tempo",
		strings.NewReader(`{"bpm": 100, "padding": "xxxxxxxxxxxxxxxx"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServerRateLimitsControlRequests(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	c.ControlRate = 1
	c.ControlBurst = 2
	s, _ := newTestServer(t, c)

	put := func() int {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/transport/tempo", strings.NewReader(`{"bpm": 100}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, put())
	assert.Equal(t, http.StatusOK, put())
	assert.Equal(t, http.StatusTooManyRequests, put())

	// Reads are never limited.
	for range 5 {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transport", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	c := DefaultConfig()
	c.Listen = "127.0.0.1:0"
	s, _ := newTestServer(t, c)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{
		Timeout:   2 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	url := fmt.Sprintf("http://%s/api/v1/health", ln.Addr())

	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	err = testutil.WaitFor(t, done, testutil.DefaultTestTimeout, "server did not shut down")
	require.NoError(t, err)
}
