// Package obslog wraps zerolog with the "load once, share as a read-only
// value" posture the teacher's logger package uses, but backed by a
// structured, allocation-light logger rather than the standard library's
// log package.
package obslog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to stderr at the given level.
// levelName is case-insensitive and defaults to "info" on an unknown value.
func New(levelName, component string) zerolog.Logger {
	level, ok := parseLevel(levelName)
	if !ok {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLevel(name string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}
