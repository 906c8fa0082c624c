package conf

import "github.com/lesionscan/lesionscan/internal/logger"

// GetLogger returns the conf module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
