// Package observability provides metrics and monitoring capabilities for the audio router.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphakala/audiorouter/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Transport *metrics.TransportMetrics
	HTTP      *metrics.HTTPMetrics

	midiOnce sync.Once
	MIDI     *metrics.MIDIMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	transportMetrics, err := metrics.NewTransportMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Transport: transportMetrics,
		HTTP:      httpMetrics,
	}, nil
}

// RegisterMIDI adds MIDI queue metrics. Only the first call registers.
func (m *Metrics) RegisterMIDI(in metrics.MIDIInputStats, out metrics.MIDIOutputStats) error {
	var err error
	m.midiOnce.Do(func() {
		m.MIDI, err = metrics.NewMIDIMetrics(m.registry, in, out)
	})
	if err != nil {
		return fmt.Errorf("failed to create MIDI metrics: %w", err)
	}
	return nil
}

// Registry returns the Prometheus registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}
