// Package configcmd implements the config subcommands.
package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiorouter/internal/conf"
)

// skipInit must match the annotation the root command checks.
const skipInit = "skip-init"

// Command creates the config command and its subcommands. configFile points
// at the root --config flag value.
func Command(settings *conf.Settings, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(initCommand(configFile), showCommand(settings), validateCommand())
	return cmd
}

func initCommand(configFile *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipInit: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := targetPath(args, *configFile)
			if err != nil {
				return err
			}
			if err := conf.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// targetPath picks the init destination: an argument, then --config, then
// the per-user default.
func targetPath(args []string, configFile string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if configFile != "" {
		return configFile, nil
	}
	return conf.DefaultConfigFile()
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		// Loading already validated the settings; reaching RunE means they are valid.
		RunE: func(cmd *cobra.Command, args []string) error {
			used := viper.ConfigFileUsed()
			if used == "" {
				used = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", used)
			return nil
		},
	}
}
