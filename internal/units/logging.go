package units

import "github.com/tphakala/audiorouter/internal/logger"

// GetLogger returns the units module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("units")
}
