package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/engine"
	"github.com/tphakala/audiorouter/internal/logger"
)

// Command creates the run command for live routing.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Route a sound card through a unit",
		Long:  "Open the configured audio device and MIDI ports and route them through the unit until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts engine.RealtimeOptions
			if settings.MIDI.Input != "" || settings.MIDI.Output != "" {
				drv, err := rtmididrv.New()
				if err != nil {
					logger.Global().Module("main").Warn("MIDI driver unavailable", logger.Error(err))
				} else {
					defer drv.Close()
					opts.MIDIDriver = drv
				}
			}

			return engine.Realtime(ctx, settings, opts)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("backend", "auto", "Audio backend (auto, alsa, pulseaudio, jack, wasapi, coreaudio, null)")
	flags.String("device", "", "Audio device name or ID, empty for the system default")
	flags.String("midi-in", "", "MIDI input port name")
	flags.String("midi-out", "", "MIDI output port name")
	flags.Bool("http", true, "Serve the control API")
	flags.String("listen", "127.0.0.1:8480", "Control API listen address")

	if err := conf.AddTransportFlags(flags); err != nil {
		return err
	}
	if err := conf.AddAudioFlags(flags); err != nil {
		return err
	}
	return conf.MapFlags(flags, map[string]string{
		"backend":  "audio.backend",
		"device":   "audio.device",
		"midi-in":  "midi.input",
		"midi-out": "midi.output",
		"http":     "http.enabled",
		"listen":   "http.listen",
	})
}
