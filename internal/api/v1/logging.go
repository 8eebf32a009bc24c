package api

import "github.com/tphakala/audiorouter/internal/logger"

// GetLogger returns the API controller logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}
