// Package telemetry declares the minimal logging seam that internal/node and the CLI use
// instead of writing to stdout directly; the other packages do not log.
package telemetry

import (
	"io"
	"log"
)

// Logger is satisfied by the standard library's *log.Logger. Components take a Logger
// rather than an *os.File or a concrete logging library so a caller can swap in a no-op,
// a test recorder, or a richer implementation without touching the component itself.
type Logger interface {
	Printf(format string, args ...any)
}

// New wraps the standard library logger with a conventional prefix/flag set.
func New(w io.Writer, prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags)
}

// Discard is a Logger that drops everything, for components under test or running with
// logging disabled.
var Discard Logger = discard{}

type discard struct{}

func (discard) Printf(string, ...any) {}
