// Package logging constructs the process logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w. Format "text" uses the console
// writer; anything else emits JSON lines. Unknown levels fall back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
