package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a structured JSON logger for the given service. An
// unrecognized level falls back to info.
func New(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
