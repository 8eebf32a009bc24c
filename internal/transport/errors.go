package transport

import "github.com/tphakala/audiorouter/internal/errors"

const componentTransport = "transport"

var (
	// ErrInvalidTempo is returned by SetTempo for values outside (0, MaxTempo].
	ErrInvalidTempo = errors.New(errors.NewStd("tempo out of range")).
			Component(componentTransport).
			Category(errors.CategoryValidation).
			Build()

	// ErrLayoutRejected marks an attach where the unit refused every candidate layout
	// or failed to configure; the unit stays attached but renders silence.
	ErrLayoutRejected = errors.New(errors.NewStd("unit rejected negotiated channel layout")).
				Component(componentTransport).
				Category(errors.CategoryNegotiation).
				Build()

	// ErrNoMIDICollector is returned by HandleIncomingMIDI when the router has no collector.
	ErrNoMIDICollector = errors.New(errors.NewStd("router has no midi collector")).
				Component(componentTransport).
				Category(errors.CategoryState).
				Build()
)
