package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/audiorouter/cmd/configcmd"
	"github.com/tphakala/audiorouter/cmd/devices"
	"github.com/tphakala/audiorouter/cmd/render"
	"github.com/tphakala/audiorouter/cmd/run"
	"github.com/tphakala/audiorouter/cmd/sysinfo"
	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

// Build metadata, set with -ldflags "-X github.com/tphakala/audiorouter/cmd.Version=..."
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// skipInit marks commands that run without loading the configuration.
const skipInit = "skip-init"

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "audiorouter",
		Short:         "Real-time audio transport router",
		Long:          "Routes sound card audio and MIDI through a processing unit with a shared transport clock.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := conf.MapFlags(rootCmd.PersistentFlags(), map[string]string{"debug": "debug"}); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	versionCmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipInit: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "audiorouter %s (built %s)\n", Version, BuildDate)
		},
	}

	rootCmd.AddCommand(
		run.Command(settings),
		render.Command(settings),
		devices.Command(settings),
		configcmd.Command(settings, &configFile),
		sysinfo.Command(),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipInit] == "true" {
			return nil
		}
		if err := conf.BindFlags(cmd.InheritedFlags()); err != nil {
			return err
		}
		if err := conf.BindFlags(cmd.Flags()); err != nil {
			return err
		}
		cl, err := initialize(settings, configFile)
		if err != nil {
			return err
		}
		central = cl
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if settings.Telemetry.Enabled {
			errors.FlushTelemetry(telemetryFlushTimeout)
		}
		if central != nil {
			_ = central.Close()
		}
	}

	return rootCmd
}

// initialize loads the configuration, installs the global logger and
// enables error telemetry. It runs before every subcommand that needs
// settings.
func initialize(settings *conf.Settings, configFile string) (*logger.CentralLogger, error) {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return nil, err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.DSN, Version); err != nil {
			central.Module("main").Warn("telemetry disabled", logger.Error(err))
		}
	}
	return central, nil
}
