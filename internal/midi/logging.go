package midi

import "github.com/tphakala/audiorouter/internal/logger"

// GetLogger returns the midi module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("midi")
}
