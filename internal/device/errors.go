package device

import "github.com/tphakala/audiorouter/internal/errors"

const componentDevice = "device"

var (
	// ErrAlreadyRunning is returned by Start on a running device.
	ErrAlreadyRunning = errors.New(errors.NewStd("device already running")).
				Component(componentDevice).
				Category(errors.CategoryState).
				Build()

	// ErrNotRunning is returned by Stop on a stopped device.
	ErrNotRunning = errors.New(errors.NewStd("device not running")).
			Component(componentDevice).
			Category(errors.CategoryState).
			Build()

	// ErrDeviceNotFound is returned when no device matches the configured name.
	ErrDeviceNotFound = errors.New(errors.NewStd("no matching audio device")).
				Component(componentDevice).
				Category(errors.CategoryNotFound).
				Build()

	// ErrInvalidFormat is returned for unusable stream or file formats.
	ErrInvalidFormat = errors.New(errors.NewStd("unsupported audio format")).
				Component(componentDevice).
				Category(errors.CategoryValidation).
				Build()
)
