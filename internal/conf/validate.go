// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/transport"
	"github.com/tphakala/audiorouter/internal/units"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, err := range []error{
		validateAudioSettings(&settings.Audio),
		validateTransportSettings(&settings.Transport),
		validateMIDISettings(&settings.MIDI),
		validateListenSettings("http", settings.HTTP.Enabled, settings.HTTP.Listen),
		validateListenSettings("metrics", settings.Metrics.Enabled, settings.Metrics.Listen),
		validateTelemetrySettings(&settings.Telemetry),
	} {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if settings.HTTP.Enabled && settings.Metrics.Enabled && settings.HTTP.Listen == settings.Metrics.Listen {
		ve.Errors = append(ve.Errors, "http and metrics listeners must use different addresses")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(s *AudioSettings) error {
	if _, err := device.ResolveBackend(s.Backend); err != nil {
		return fmt.Errorf("audio backend: %w", err)
	}
	if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio sample rate must be between %d and %d, got %g", MinSampleRate, MaxSampleRate, s.SampleRate)
	}
	if s.BlockSize < MinBlockSize || s.BlockSize > MaxBlockSize {
		return fmt.Errorf("audio block size must be between %d and %d, got %d", MinBlockSize, MaxBlockSize, s.BlockSize)
	}
	if s.InputChannels < 0 || s.InputChannels > MaxChannels {
		return fmt.Errorf("audio input channels must be between 0 and %d, got %d", MaxChannels, s.InputChannels)
	}
	if s.OutputChannels < 0 || s.OutputChannels > MaxChannels {
		return fmt.Errorf("audio output channels must be between 0 and %d, got %d", MaxChannels, s.OutputChannels)
	}
	return nil
}

func validateTransportSettings(s *TransportSettings) error {
	if s.Unit != "" {
		known := units.Names()
		if !slices.Contains(known, s.Unit) {
			return fmt.Errorf("transport unit %q is not one of %s", s.Unit, strings.Join(known, ", "))
		}
	}
	if s.Tempo <= 0 || s.Tempo > transport.MaxTempo {
		return fmt.Errorf("transport tempo must be in (0, %g], got %g", transport.MaxTempo, s.Tempo)
	}
	if s.GainDB > units.MaxGainDB {
		return fmt.Errorf("transport gain must be at most %g dB, got %g", float64(units.MaxGainDB), s.GainDB)
	}
	if s.ClickLevel < 0 || s.ClickLevel > 1 {
		return fmt.Errorf("transport click level must be between 0 and 1, got %g", s.ClickLevel)
	}
	if s.Semitones < -units.MaxTranspose || s.Semitones > units.MaxTranspose {
		return fmt.Errorf("transport semitones must be between -%d and %d, got %d", units.MaxTranspose, units.MaxTranspose, s.Semitones)
	}
	return nil
}

func validateMIDISettings(s *MIDISettings) error {
	if s.QueueSize < 0 {
		return fmt.Errorf("midi queue size must not be negative, got %d", s.QueueSize)
	}
	return nil
}

func validateListenSettings(name string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s listen address %q must be host:port: %w", name, listen, err)
	}
	return nil
}

func validateTelemetrySettings(s *TelemetrySettings) error {
	if s.Enabled && s.DSN == "" {
		return fmt.Errorf("telemetry is enabled but no DSN is configured")
	}
	return nil
}
