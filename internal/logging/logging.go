package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger: human-readable console output on the
// given writer (stderr when nil), debug level when verbose, info otherwise.
// Diagnostics stay on stderr so structured stdout output is never polluted.
func New(verbose bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(consoleWriter).
		Level(level).
		With().
		Timestamp().
		Logger()
}
