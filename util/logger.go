package util

import (
	"fmt"
	"strings"

	"github.com/goware/logger"
)

// NewLogger builds the process logger from a configured level name: debug,
// info, warn or error.
func NewLogger(level string) (logger.Logger, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.NewLogger(logger.LogLevel_DEBUG), nil
	case "", "info":
		return logger.NewLogger(logger.LogLevel_INFO), nil
	case "warn", "warning":
		return logger.NewLogger(logger.LogLevel_WARN), nil
	case "error":
		return logger.NewLogger(logger.LogLevel_ERROR), nil
	}
	return nil, fmt.Errorf("unknown log level %q", level)
}
