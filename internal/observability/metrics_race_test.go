package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/testutil"
	"github.com/tphakala/audiorouter/internal/transport"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			metrics, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, metrics.registry)
			assert.NotNil(t, metrics.Transport)
			assert.NotNil(t, metrics.HTTP)
		})
	}
	wg.Wait()
}

type midiStats struct{}

func (midiStats) Dropped() uint64                       { return 3 }
func (midiStats) Pending() int                          { return 12 }
func (midiStats) Stats() (sent, dropped, failed uint64) { return 40, 2, 1 }

func TestRegisterMIDIOnce(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	require.NoError(t, m.RegisterMIDI(midiStats{}, midiStats{}))
	first := m.MIDI
	require.NoError(t, m.RegisterMIDI(midiStats{}, nil))
	assert.Same(t, first, m.MIDI)
}

func TestHandlerExposesTransportMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	require.NoError(t, m.RegisterMIDI(midiStats{}, midiStats{}))

	m.Transport.RecordBlock(transport.BlockProcessed, 512, time.Millisecond)
	m.Transport.SetTempo(98)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `transport_blocks_total{outcome="processed"} 1`)
	assert.Contains(t, body, "transport_tempo_bpm 98")
	assert.Contains(t, body, "midi_output_sent_total 40")
	assert.Contains(t, body, "midi_input_pending_bytes 12")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewEndpointDisabled(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	_, err = NewEndpoint(settings, m)
	assert.Error(t, err)
}

func TestEndpointServeAndShutdown(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Metrics.Enabled = true
	settings.Metrics.Listen = "127.0.0.1:0"
	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, e.GetMetrics())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "transport_tempo_bpm")

	cancel()
	err = testutil.WaitFor(t, done, testutil.DefaultTestTimeout, "endpoint did not shut down")
	assert.NoError(t, err)
}
