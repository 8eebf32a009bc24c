// env.go - Environment variable configuration and validation for the audio router
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tphakala/audiorouter/internal/transport"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "AUDIOROUTER_DEBUG", validateEnvBool},

		// Audio device
		{"audio.backend", "AUDIOROUTER_AUDIO_BACKEND", nil},
		{"audio.device", "AUDIOROUTER_AUDIO_DEVICE", nil},
		{"audio.samplerate", "AUDIOROUTER_AUDIO_SAMPLERATE", validateEnvSampleRate},
		{"audio.blocksize", "AUDIOROUTER_AUDIO_BLOCKSIZE", validateEnvBlockSize},
		{"audio.inputchannels", "AUDIOROUTER_AUDIO_INPUTCHANNELS", validateEnvChannels},
		{"audio.outputchannels", "AUDIOROUTER_AUDIO_OUTPUTCHANNELS", validateEnvChannels},

		// Transport
		{"transport.unit", "AUDIOROUTER_TRANSPORT_UNIT", nil},
		{"transport.tempo", "AUDIOROUTER_TRANSPORT_TEMPO", validateEnvTempo},
		{"transport.doubleprecision", "AUDIOROUTER_TRANSPORT_DOUBLEPRECISION", validateEnvBool},
		{"transport.gaindb", "AUDIOROUTER_TRANSPORT_GAINDB", validateEnvFloat},

		// MIDI
		{"midi.input", "AUDIOROUTER_MIDI_INPUT", nil},
		{"midi.output", "AUDIOROUTER_MIDI_OUTPUT", nil},

		// HTTP and metrics
		{"http.enabled", "AUDIOROUTER_HTTP_ENABLED", validateEnvBool},
		{"http.listen", "AUDIOROUTER_HTTP_LISTEN", validateEnvListen},
		{"metrics.enabled", "AUDIOROUTER_METRICS_ENABLED", validateEnvBool},
		{"metrics.listen", "AUDIOROUTER_METRICS_LISTEN", validateEnvListen},

		// Telemetry
		{"telemetry.enabled", "AUDIOROUTER_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "AUDIOROUTER_TELEMETRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvFloat(value string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	return nil
}

func validateEnvSampleRate(value string) error {
	rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid sample rate: %w", err)
	}
	if rate < MinSampleRate || rate > MaxSampleRate {
		return fmt.Errorf("sample rate must be between %d and %d, got %g", MinSampleRate, MaxSampleRate, rate)
	}
	return nil
}

func validateEnvBlockSize(value string) error {
	size, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid block size: %w", err)
	}
	if size < MinBlockSize || size > MaxBlockSize {
		return fmt.Errorf("block size must be between %d and %d, got %d", MinBlockSize, MaxBlockSize, size)
	}
	return nil
}

func validateEnvChannels(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid channel count: %w", err)
	}
	if n < 0 || n > MaxChannels {
		return fmt.Errorf("channel count must be between 0 and %d, got %d", MaxChannels, n)
	}
	return nil
}

func validateEnvTempo(value string) error {
	bpm, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid tempo: %w", err)
	}
	if bpm <= 0 || bpm > transport.MaxTempo {
		return fmt.Errorf("tempo must be in (0, %g], got %g", transport.MaxTempo, bpm)
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}
