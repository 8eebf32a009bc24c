package metrics

import "github.com/prometheus/client_golang/prometheus"

// MIDIOutputStats is implemented by the MIDI output sender.
type MIDIOutputStats interface {
	Stats() (sent, dropped, failed uint64)
}

// MIDIInputStats is implemented by the incoming MIDI collector.
type MIDIInputStats interface {
	Dropped() uint64
	Pending() int
}

// MIDIMetrics exposes MIDI queue counters. Values are read at scrape time.
type MIDIMetrics struct {
	collectors []prometheus.Collector
}

// NewMIDIMetrics creates and registers MIDI metrics. out may be nil when no
// output port is configured.
func NewMIDIMetrics(registry *prometheus.Registry, in MIDIInputStats, out MIDIOutputStats) (*MIDIMetrics, error) {
	m := &MIDIMetrics{}
	if in != nil {
		m.collectors = append(m.collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "midi_input_dropped_total",
				Help: "Total number of incoming MIDI messages dropped because the queue was full",
			}, func() float64 { return float64(in.Dropped()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "midi_input_pending_bytes",
				Help: "Bytes of incoming MIDI waiting for the next audio block",
			}, func() float64 { return float64(in.Pending()) }),
		)
	}
	if out != nil {
		m.collectors = append(m.collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "midi_output_sent_total",
				Help: "Total number of MIDI messages written to the output port",
			}, func() float64 { sent, _, _ := out.Stats(); return float64(sent) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "midi_output_dropped_total",
				Help: "Total number of outgoing MIDI messages dropped because the queue was full",
			}, func() float64 { _, dropped, _ := out.Stats(); return float64(dropped) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "midi_output_failed_total",
				Help: "Total number of outgoing MIDI messages the port refused",
			}, func() float64 { _, _, failed := out.Stats(); return float64(failed) }),
		)
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *MIDIMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *MIDIMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}
