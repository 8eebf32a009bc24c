package render

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/engine"
)

// Command creates the render command for offline processing.
func Command(settings *conf.Settings) *cobra.Command {
	var opts engine.RenderOptions

	cmd := &cobra.Command{
		Use:   "render -o output.wav [-i input.wav]",
		Short: "Render a WAV file through a unit",
		Long: `Process a WAV file through the unit as fast as possible and write the result.
Without an input file the unit runs over silence for --duration, which suits the metronome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := engine.Render(ctx, settings, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %.3fs (%d frames) to %s in %s\n",
				result.Seconds(), result.Frames, opts.Output, result.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Input, "input", "i", "", "Input WAV file")
	flags.StringVarP(&opts.Output, "output", "o", "", "Output WAV file")
	flags.DurationVar(&opts.Duration, "duration", 0, "Render length when there is no input file")
	flags.DurationVar(&opts.Tail, "tail", 0, "Silence rendered after the input ends")
	flags.IntVar(&opts.BitDepth, "bitdepth", 0, "Output bit depth (16, 24, 32), 0 keeps the input's")
	_ = cmd.MarkFlagRequired("output")

	if err := conf.AddTransportFlags(flags); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	if err := conf.AddAudioFlags(flags); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}
