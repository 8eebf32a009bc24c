package midi

import "github.com/tphakala/audiorouter/internal/errors"

const componentMIDI = "midi"

var (
	// ErrQueueFull is returned when the inbound or outbound queue has no room for a message.
	ErrQueueFull = errors.New(errors.NewStd("midi queue full")).
			Component(componentMIDI).
			Category(errors.CategoryLimit).
			Build()

	// ErrMessageTooLarge is returned for messages longer than MaxMessageSize.
	ErrMessageTooLarge = errors.New(errors.NewStd("midi message exceeds maximum size")).
				Component(componentMIDI).
				Category(errors.CategoryValidation).
				Build()

	// ErrEmptyMessage is returned for zero-length messages.
	ErrEmptyMessage = errors.New(errors.NewStd("empty midi message")).
			Component(componentMIDI).
			Category(errors.CategoryValidation).
			Build()

	// ErrCollectorNotReady is returned when messages arrive before the collector knows its sample rate.
	ErrCollectorNotReady = errors.New(errors.NewStd("midi collector has no sample rate")).
				Component(componentMIDI).
				Category(errors.CategoryState).
				Build()

	// ErrNoPort is returned when an Output is created without a port.
	ErrNoPort = errors.New(errors.NewStd("midi output port is nil")).
			Component(componentMIDI).
			Category(errors.CategoryConfiguration).
			Build()
)

// ErrPortNotFound is returned when no MIDI port matches the configured name.
var ErrPortNotFound = errors.New(errors.NewStd("midi port not found")).
	Component(componentMIDI).
	Category(errors.CategoryNotFound).
	Build()
