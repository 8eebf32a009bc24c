// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
	"github.com/tphakala/audiorouter/internal/units"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("audio.backend", "auto")
	viper.SetDefault("audio.device", "")
	viper.SetDefault("audio.samplerate", 48000.0)
	viper.SetDefault("audio.blocksize", 512)
	viper.SetDefault("audio.inputchannels", 0)
	viper.SetDefault("audio.outputchannels", 0)

	opts := units.DefaultOptions()
	viper.SetDefault("transport.unit", "gain")
	viper.SetDefault("transport.tempo", transport.DefaultTempo)
	viper.SetDefault("transport.doubleprecision", false)
	viper.SetDefault("transport.gaindb", opts.GainDB)
	viper.SetDefault("transport.clicklevel", opts.ClickLevel)
	viper.SetDefault("transport.clicknotes", opts.ClickNotes)
	viper.SetDefault("transport.semitones", opts.Semitones)

	viper.SetDefault("midi.input", "")
	viper.SetDefault("midi.output", "")
	viper.SetDefault("midi.queuesize", midi.DefaultQueueBytes)
	viper.SetDefault("midi.backgroundsender", true)

	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.listen", "127.0.0.1:8480")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:8490")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
