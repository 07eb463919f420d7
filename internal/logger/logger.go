// Package logger builds the structured logger shared by the CLI and server.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Prefix tags every line written by the application.
const Prefix = "recurring"

// New returns a logger writing to w at the named level. An unknown level
// falls back to info and a nil writer means stderr.
func New(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		Level:           lvl,
		ReportTimestamp: true,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
