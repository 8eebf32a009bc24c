package conf

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeyAnnotation holds the config key a flag maps to.
const flagKeyAnnotation = "config-key"

// MapFlags records which config key each named flag sets. Several commands
// may map flags to the same key; only the running command's flags are bound,
// by BindFlags.
func MapFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := flags.SetAnnotation(name, flagKeyAnnotation, []string{key}); err != nil {
			return fmt.Errorf("error mapping flag %q to %s: %w", name, key, err)
		}
	}
	return nil
}

// BindFlags binds every mapped flag in flags to its config key. Bound flags
// override the config file and environment only when set on the command line.
// Call it before Load.
func BindFlags(flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		keys := flag.Annotations[flagKeyAnnotation]
		if bindErr != nil || len(keys) == 0 {
			return
		}
		if err := viper.BindPFlag(keys[0], flag); err != nil {
			bindErr = fmt.Errorf("error binding flag %q to %s: %w", flag.Name, keys[0], err)
		}
	})
	return bindErr
}

// AddTransportFlags defines the flags that select and tune the unit and
// the transport clock, mapped to their transport.* keys.
func AddTransportFlags(flags *pflag.FlagSet) error {
	flags.StringP("unit", "u", "gain", "Processing unit to attach (gain, metronome, transpose)")
	flags.Float64P("tempo", "t", 120, "Transport tempo in BPM")
	flags.Bool("double", false, "Process in double precision when the unit supports it")
	flags.Float64("gain-db", 0, "Gain unit level in dB")
	flags.Float64("click-level", 0.5, "Metronome click level, 0 to 1")
	flags.Bool("click-notes", false, "Emit metronome clicks as MIDI notes")
	flags.Int("semitones", 0, "Transpose unit interval in semitones")

	return MapFlags(flags, map[string]string{
		"unit":        "transport.unit",
		"tempo":       "transport.tempo",
		"double":      "transport.doubleprecision",
		"gain-db":     "transport.gaindb",
		"click-level": "transport.clicklevel",
		"click-notes": "transport.clicknotes",
		"semitones":   "transport.semitones",
	})
}

// AddAudioFlags defines the audio format flags, mapped to their audio.* keys.
func AddAudioFlags(flags *pflag.FlagSet) error {
	flags.Float64("samplerate", 48000, "Sample rate in Hz")
	flags.Int("blocksize", 512, "Frames per processing block")
	flags.Int("inputs", 0, "Input channels, 0 for the unit's default")
	flags.Int("outputs", 0, "Output channels, 0 for the unit's default")

	return MapFlags(flags, map[string]string{
		"samplerate": "audio.samplerate",
		"blocksize":  "audio.blocksize",
		"inputs":     "audio.inputchannels",
		"outputs":    "audio.outputchannels",
	})
}
