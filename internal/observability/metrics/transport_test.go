package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/audiorouter/internal/transport"
)

var _ transport.Metrics = (*TransportMetrics)(nil)

func newTestTransportMetrics(t *testing.T) *TransportMetrics {
	t.Helper()
	m, err := NewTransportMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestTransportMetrics_RecordBlock(t *testing.T) {
	t.Parallel()
	m := newTestTransportMetrics(t)

	m.RecordBlock(transport.BlockProcessed, 256, 100*time.Microsecond)
	m.RecordBlock(transport.BlockProcessed, 256, 120*time.Microsecond)
	m.RecordBlock(transport.BlockSilentSuspended, 256, 5*time.Microsecond)
	m.RecordBlock(transport.BlockSilentUnprepared, 0, time.Microsecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.blocksTotal.WithLabelValues("processed")), 0)
	assert.InDelta(t, 512.0, testutil.ToFloat64(m.samplesTotal.WithLabelValues("processed")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.blocksTotal.WithLabelValues("silent_suspended")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.blocksTotal.WithLabelValues("silent_unprepared")), 0)
	assert.Zero(t, testutil.ToFloat64(m.samplesTotal.WithLabelValues("silent_unprepared")))
	assert.Equal(t, len(transport.BlockOutcomes()),
		testutil.CollectAndCount(m.blockDuration, "transport_block_duration_seconds"),
		"every outcome series exists before the first block")

	observed := map[transport.BlockOutcome]uint64{
		transport.BlockProcessed:           2,
		transport.BlockSilentNoUnit:        0,
		transport.BlockSilentSuspended:     1,
		transport.BlockSilentMisconfigured: 0,
		transport.BlockSilentUnprepared:    1,
	}
	for outcome, want := range observed {
		assert.Equal(t, want, histogramCount(t, m.blockDuration, outcome.String()), outcome.String())
	}
}

func histogramCount(t *testing.T, vec *prometheus.HistogramVec, label string) uint64 {
	t.Helper()
	metric, ok := vec.WithLabelValues(label).(prometheus.Metric)
	require.True(t, ok)
	var pb dto.Metric
	require.NoError(t, metric.Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func TestTransportMetrics_RecordBlockUnknownOutcome(t *testing.T) {
	t.Parallel()
	m := newTestTransportMetrics(t)

	assert.NotPanics(t, func() {
		m.RecordBlock(transport.BlockOutcome(99), 64, time.Microsecond)
		m.RecordBlock(transport.BlockOutcome(-1), 64, time.Microsecond)
	})
	assert.Zero(t, histogramCount(t, m.blockDuration, transport.BlockProcessed.String()))
}

func TestTransportMetrics_RecordBlockDoesNotAllocate(t *testing.T) {
	m := newTestTransportMetrics(t)

	allocs := testing.AllocsPerRun(100, func() {
		m.RecordBlock(transport.BlockProcessed, 128, 50*time.Microsecond)
	})
	assert.Zero(t, allocs)
}

func TestTransportMetrics_Control(t *testing.T) {
	t.Parallel()
	m := newTestTransportMetrics(t)

	m.RecordAttach("gain", true)
	m.RecordAttach("gain", false)
	m.RecordNegotiation(transport.ChannelCount{Ins: 2, Outs: 2}, false)
	m.RecordNegotiation(transport.ChannelCount{Ins: 0, Outs: 2}, true)
	m.RecordDeviceEvent("start")
	m.RecordMIDIEvents(3)
	m.RecordMIDIEvents(2)
	m.SetTempo(140)
	m.SetPrecision(transport.DoublePrecision)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.attachTotal.WithLabelValues("gain", StatusSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.attachTotal.WithLabelValues("gain", StatusRejected)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.negotiationTotal.WithLabelValues(
		transport.ChannelCount{Ins: 0, Outs: 2}.String(), LabelAdapted)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.deviceEvents.WithLabelValues("start")), 0)
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.midiEventsTotal), 0)
	assert.InDelta(t, 140.0, testutil.ToFloat64(m.tempo), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.doublePrecision), 0)

	m.SetPrecision(transport.SinglePrecision)
	assert.Zero(t, testutil.ToFloat64(m.doublePrecision))
}

func TestTransportMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	_, err := NewTransportMetrics(registry)
	require.NoError(t, err)

	_, err = NewTransportMetrics(registry)
	assert.Error(t, err)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()
	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RequestStarted()
	m.RequestStarted()
	m.RequestFinished()
	assert.InDelta(t, 1.0, m.GetInFlightRequests(), 0)

	m.RecordHTTPRequest("GET", "/api/v1/status", 200, 0.002)
	m.RecordHTTPRequestError("PUT", "/api/v1/tempo", "validation")
	m.RecordControlOperation("tempo", nil)
	m.RecordControlOperation("tempo", errors.New("bad tempo"))

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/status", "200")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.httpRequestErrors.WithLabelValues("PUT", "/api/v1/tempo", "validation")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.controlOperationsTotal.WithLabelValues("tempo", StatusSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.controlOperationsTotal.WithLabelValues("tempo", StatusError)), 0)
}

type fakeMIDIStats struct {
	dropped uint64
	pending int
	sent    uint64
}

func (f *fakeMIDIStats) Dropped() uint64                       { return f.dropped }
func (f *fakeMIDIStats) Pending() int                          { return f.pending }
func (f *fakeMIDIStats) Stats() (sent, dropped, failed uint64) { return f.sent, f.dropped, 0 }

func TestMIDIMetrics_ReadAtScrape(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	stats := &fakeMIDIStats{}
	_, err := NewMIDIMetrics(registry, stats, stats)
	require.NoError(t, err)

	stats.sent = 7
	stats.dropped = 2
	stats.pending = 9

	count, err := testutil.GatherAndCount(registry, "midi_output_sent_total", "midi_input_pending_bytes")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}
	assert.InDelta(t, 7.0, values["midi_output_sent_total"], 0)
	assert.InDelta(t, 2.0, values["midi_input_dropped_total"], 0)
	assert.InDelta(t, 9.0, values["midi_input_pending_bytes"], 0)
}

func TestMIDIMetrics_InputOnly(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	_, err := NewMIDIMetrics(registry, &fakeMIDIStats{}, nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
