// Package metrics provides transport router metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tphakala/audiorouter/internal/transport"
)

// TransportMetrics contains Prometheus metrics for the transport router.
// It implements transport.Metrics.
type TransportMetrics struct {
	registry *prometheus.Registry

	// Block metrics
	blocksTotal     *prometheus.CounterVec
	samplesTotal    *prometheus.CounterVec
	blockDuration   *prometheus.HistogramVec
	midiEventsTotal prometheus.Counter

	// Control metrics
	attachTotal      *prometheus.CounterVec
	negotiationTotal *prometheus.CounterVec
	deviceEvents     *prometheus.CounterVec
	tempo            prometheus.Gauge
	doublePrecision  prometheus.Gauge

	// Pre-resolved children, indexed by transport.BlockOutcome, so the audio
	// callback never hashes label values.
	blockCounters  []prometheus.Counter
	sampleCounters []prometheus.Counter
	durations      []prometheus.Observer

	collectors []prometheus.Collector
}

// NewTransportMetrics creates and registers new transport metrics
func NewTransportMetrics(registry *prometheus.Registry) (*TransportMetrics, error) {
	m := &TransportMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *TransportMetrics) initMetrics() {
	m.blocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_blocks_total",
			Help: "Total number of audio blocks handled by the router",
		},
		[]string{"outcome"}, // processed, silent_no_unit, silent_suspended, ...
	)

	m.samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_samples_total",
			Help: "Total number of sample frames handled by the router",
		},
		[]string{"outcome"},
	)

	m.blockDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transport_block_duration_seconds",
			Help:    "Time spent in the audio callback per block",
			Buckets: prometheus.ExponentialBuckets(BucketStart10us, BucketFactor2, BucketCount15), // 10us to ~160ms
		},
		[]string{"outcome"},
	)

	m.midiEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_midi_events_in_total",
			Help: "Total number of incoming MIDI events delivered to the unit",
		},
	)

	m.attachTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_unit_attach_total",
			Help: "Total number of unit attach operations",
		},
		[]string{"unit", "status"}, // status: success, rejected
	)

	m.negotiationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_layout_negotiations_total",
			Help: "Total number of channel layout negotiations",
		},
		[]string{"layout", "mode"}, // mode: device, adapted
	)

	m.deviceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_device_events_total",
			Help: "Total number of device lifecycle events",
		},
		[]string{"event"}, // start, stop
	)

	m.tempo = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transport_tempo_bpm",
			Help: "Current transport tempo in beats per minute",
		},
	)

	m.doublePrecision = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transport_double_precision",
			Help: "1 when the unit runs in double precision, 0 otherwise",
		},
	)

	outcomes := transport.BlockOutcomes()
	m.blockCounters = make([]prometheus.Counter, len(outcomes))
	m.sampleCounters = make([]prometheus.Counter, len(outcomes))
	m.durations = make([]prometheus.Observer, len(outcomes))
	for _, o := range outcomes {
		m.blockCounters[o] = m.blocksTotal.WithLabelValues(o.String())
		m.sampleCounters[o] = m.samplesTotal.WithLabelValues(o.String())
		m.durations[o] = m.blockDuration.WithLabelValues(o.String())
	}

	m.collectors = []prometheus.Collector{
		m.blocksTotal,
		m.samplesTotal,
		m.blockDuration,
		m.midiEventsTotal,
		m.attachTotal,
		m.negotiationTotal,
		m.deviceEvents,
		m.tempo,
		m.doublePrecision,
	}
}

// Describe implements the Collector interface
func (m *TransportMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *TransportMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordBlock records one audio callback. It runs on the audio goroutine.
func (m *TransportMetrics) RecordBlock(outcome transport.BlockOutcome, numSamples int, elapsed time.Duration) {
	if outcome < 0 || int(outcome) >= len(m.blockCounters) {
		return
	}
	m.blockCounters[outcome].Inc()
	if numSamples > 0 {
		m.sampleCounters[outcome].Add(float64(numSamples))
	}
	m.durations[outcome].Observe(elapsed.Seconds())
}

// RecordMIDIEvents records incoming MIDI events delivered in one block
func (m *TransportMetrics) RecordMIDIEvents(in int) {
	m.midiEventsTotal.Add(float64(in))
}

// RecordAttach records a unit attach operation
func (m *TransportMetrics) RecordAttach(unit string, accepted bool) {
	status := StatusSuccess
	if !accepted {
		status = StatusRejected
	}
	m.attachTotal.WithLabelValues(unit, status).Inc()
}

// RecordNegotiation records the layout chosen for a unit
func (m *TransportMetrics) RecordNegotiation(layout transport.ChannelCount, adapted bool) {
	mode := LabelDevice
	if adapted {
		mode = LabelAdapted
	}
	m.negotiationTotal.WithLabelValues(layout.String(), mode).Inc()
}

// RecordDeviceEvent records a device lifecycle event
func (m *TransportMetrics) RecordDeviceEvent(event string) {
	m.deviceEvents.WithLabelValues(event).Inc()
}

// SetTempo updates the tempo gauge
func (m *TransportMetrics) SetTempo(bpm float64) {
	m.tempo.Set(bpm)
}

// SetPrecision updates the precision gauge
func (m *TransportMetrics) SetPrecision(p transport.Precision) {
	if p == transport.DoublePrecision {
		m.doublePrecision.Set(1)
		return
	}
	m.doublePrecision.Set(0)
}
