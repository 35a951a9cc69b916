// Package logging wires the module's ambient diagnostics through
// github.com/joeycumines/logiface, backed in production by zerolog
// (github.com/joeycumines/izerolog, github.com/rs/zerolog). Every
// constructor in this module that can emit a diagnostic (dropped message,
// actor failure, failed shuttle submit) accepts a *Logger; tests
// and examples that don't care about output use Discard().
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the type threaded through the module's constructors.
type Logger = logiface.Logger[*izerolog.Event]

// New builds a Logger writing leveled, structured JSON to w at the given
// minimum level (e.g. logiface.LevelInformational, logiface.LevelWarning).
func New(w io.Writer, level logiface.Level) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*izerolog.Event](
		izerolog.L.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](level),
	)
}

// Default builds a Logger writing to os.Stderr at Informational level,
// suitable for the cmd/peernetic CLI.
func Default() *Logger {
	return New(os.Stderr, logiface.LevelInformational)
}

// Discard builds a Logger with every level disabled, for use in tests and
// library call sites that don't care about diagnostics.
func Discard() *Logger {
	return logiface.New[*izerolog.Event](
		izerolog.L.WithZerolog(zerolog.Nop()),
		logiface.WithLevel[*izerolog.Event](logiface.LevelDisabled),
	)
}
