// Package logging builds the charmbracelet logger shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

const prefix = "pyfreeze"

// New returns a logger writing to w at the named level. Unknown level names
// fall back to info and say so.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Level:           log.WarnLevel,
	})
	if level == "" {
		return logger
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.SetLevel(log.InfoLevel)
		logger.Warn("unknown log level, using info", "level", level)
		return logger
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Prefix: prefix})
}
