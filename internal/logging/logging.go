// internal/logging/logging.go
//
// Process-wide logging setup shared by the server and the terminal client.
// Responsibilities:
//   - Parse the configured level ("debug", "info", ...) into zerolog's global level.
//   - Pick console or JSON output on the given writer.

// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. format "console" gives human
// readable output on w; anything else writes JSON lines.
// Unknown levels leave the current level untouched.
func Setup(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
