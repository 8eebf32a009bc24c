package transport

import "github.com/tphakala/audiorouter/internal/logger"

// GetLogger returns the transport module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("transport")
}
