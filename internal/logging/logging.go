// Package logging builds the zerolog loggers shared by all binaries.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stderr at level, tagged with component.
// Unknown levels fall back to info.
func New(level, component string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, component)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger().Level(lvl)
}
