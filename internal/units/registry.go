package units

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/transport"
)

// Options configures units created through New. Fields a unit does not use are ignored.
type Options struct {
	GainDB     float64 `mapstructure:"gaindb" yaml:"gaindb" json:"gain_db"`
	ClickLevel float64 `mapstructure:"clicklevel" yaml:"clicklevel" json:"click_level"`
	ClickNotes bool    `mapstructure:"clicknotes" yaml:"clicknotes" json:"click_notes"`
	Semitones  int     `mapstructure:"semitones" yaml:"semitones" json:"semitones"`
}

// DefaultOptions returns options for unity gain, a half-level metronome and no transposition.
func DefaultOptions() Options {
	return Options{ClickLevel: DefaultClickLevel}
}

// Factory builds a unit from options.
type Factory func(opts Options) (transport.Unit, error)

var registry = map[string]Factory{
	"gain": func(opts Options) (transport.Unit, error) {
		return NewGain(DBToLinear(opts.GainDB))
	},
	"metronome": func(opts Options) (transport.Unit, error) {
		return NewMetronome(opts.ClickLevel, opts.ClickNotes)
	},
	"transpose": func(opts Options) (transport.Unit, error) {
		return NewTranspose(opts.Semitones)
	},
}

// Names lists the registered unit names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// New creates the named unit.
func New(name string, opts Options) (transport.Unit, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnknownUnit, name)).
			Component(componentUnits).
			Category(errors.CategoryNotFound).
			Context("unit", name).
			Context("available", Names()).
			Build()
	}

	u, err := factory(opts)
	if err != nil {
		return nil, err
	}

	GetLogger().Debug("unit created",
		logger.String("unit", name),
		logger.Float64("gain_db", opts.GainDB),
		logger.Int("semitones", opts.Semitones))
	return u, nil
}
