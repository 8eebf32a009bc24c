package units

import (
	"fmt"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/transport"
)

const componentUnits = "units"

var (
	// ErrUnknownUnit is returned by New for names not in the registry.
	ErrUnknownUnit = errors.New(errors.NewStd("unknown processing unit")).
			Component(componentUnits).
			Category(errors.CategoryNotFound).
			Build()

	// ErrInvalidOption is returned for out-of-range unit options.
	ErrInvalidOption = errors.New(errors.NewStd("invalid unit option")).
				Component(componentUnits).
				Category(errors.CategoryValidation).
				Build()
)

func newConfigError(unit string, layout transport.ChannelCount, sampleRate float64, blockSize int) error {
	return errors.Newf("%s: cannot configure %s at %g Hz / %d samples", unit, layout, sampleRate, blockSize).
		Component(componentUnits).
		Category(errors.CategoryUnit).
		Context("unit", unit).
		DeviceContext("", sampleRate, blockSize).
		Build()
}

func newOptionError(unit, option string, value any) error {
	return errors.New(fmt.Errorf("%w: %s %s=%v", ErrInvalidOption, unit, option, value)).
		Component(componentUnits).
		Category(errors.CategoryValidation).
		Context("unit", unit).
		Context("option", option).
		Build()
}
