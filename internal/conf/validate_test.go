package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/audiorouter/internal/units"
)

func validSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{Backend: "null", SampleRate: 48000, BlockSize: 512},
		Transport: TransportSettings{
			Unit:    "gain",
			Tempo:   120,
			Options: units.DefaultOptions(),
		},
		HTTP:    HTTPSettings{Enabled: true, Listen: "127.0.0.1:8480"},
		Metrics: MetricsSettings{Enabled: true, Listen: "127.0.0.1:8490"},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"no unit", func(s *Settings) { s.Transport.Unit = "" }, ""},
		{"unknown unit", func(s *Settings) { s.Transport.Unit = "reverb" }, "transport unit"},
		{"unknown backend", func(s *Settings) { s.Audio.Backend = "oss" }, "audio backend"},
		{"low sample rate", func(s *Settings) { s.Audio.SampleRate = 100 }, "sample rate"},
		{"tiny block", func(s *Settings) { s.Audio.BlockSize = 4 }, "block size"},
		{"negative inputs", func(s *Settings) { s.Audio.InputChannels = -1 }, "input channels"},
		{"too many outputs", func(s *Settings) { s.Audio.OutputChannels = MaxChannels + 1 }, "output channels"},
		{"zero tempo", func(s *Settings) { s.Transport.Tempo = 0 }, "tempo"},
		{"loud gain", func(s *Settings) { s.Transport.GainDB = 30 }, "gain"},
		{"click level", func(s *Settings) { s.Transport.ClickLevel = 1.5 }, "click level"},
		{"semitones", func(s *Settings) { s.Transport.Semitones = -60 }, "semitones"},
		{"midi queue", func(s *Settings) { s.MIDI.QueueSize = -1 }, "midi queue"},
		{"bad listen", func(s *Settings) { s.HTTP.Listen = "8480" }, "http listen"},
		{"disabled listener ignored", func(s *Settings) { s.Metrics.Enabled = false; s.Metrics.Listen = "" }, ""},
		{"same listen", func(s *Settings) { s.Metrics.Listen = s.HTTP.Listen }, "different addresses"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "DSN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	t.Parallel()
	s := validSettings()
	s.Audio.BlockSize = 0
	s.Transport.Tempo = -1

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
