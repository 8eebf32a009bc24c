// Package conf provides configuration management for the audio router.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/units"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings selects and sizes the audio device.
type AudioSettings struct {
	Backend        string  `yaml:"backend"`        // auto, alsa, pulseaudio, jack, wasapi, coreaudio, null
	Device         string  `yaml:"device"`         // device name or ID, empty for the system default
	SampleRate     float64 `yaml:"samplerate"`     // requested sample rate in Hz
	BlockSize      int     `yaml:"blocksize"`      // frames per callback block
	InputChannels  int     `yaml:"inputchannels"`  // 0 uses the unit's default layout
	OutputChannels int     `yaml:"outputchannels"` // 0 uses the unit's default layout
}

// TransportSettings configures the router and the unit it hosts.
type TransportSettings struct {
	Unit            string  `yaml:"unit"`            // unit name from the registry, empty for none
	Tempo           float64 `yaml:"tempo"`           // beats per minute
	DoublePrecision bool    `yaml:"doubleprecision"` // process in float64 when the unit supports it

	units.Options `mapstructure:",squash" yaml:",inline"`
}

// MIDISettings selects MIDI ports and queue sizes.
type MIDISettings struct {
	Input            string `yaml:"input"`            // input port name substring, empty disables
	Output           string `yaml:"output"`           // output port name substring, empty disables
	QueueSize        int    `yaml:"queuesize"`        // bytes per MIDI FIFO
	BackgroundSender bool   `yaml:"backgroundsender"` // schedule output on a sender goroutine
}

// HTTPSettings configures the control API.
type HTTPSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MetricsSettings configures the dedicated metrics listener.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// TelemetrySettings configures error reporting.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for the audio router.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	Audio     AudioSettings        `yaml:"audio"`
	Transport TransportSettings    `yaml:"transport"`
	MIDI      MIDISettings         `yaml:"midi"`
	HTTP      HTTPSettings         `yaml:"http"`
	Metrics   MetricsSettings      `yaml:"metrics"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// current settings. An empty configFile searches the default config paths;
// a missing config file leaves the defaults in place.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("Environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &configFileNotFoundError) {
			GetLogger().Info("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Debug("Loaded config file", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfig returns the embedded default config.yaml.
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded default config to path. It refuses
// to overwrite an existing file unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := DefaultConfig()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so the replace is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
