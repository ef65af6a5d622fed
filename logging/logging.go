// Package logging configures the process-wide zerolog logger. Every package
// takes a child logger from For so log lines carry the component name.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var base atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
	base.Store(&l)
}

// Setup replaces the base logger. format is "console" or "json".
func Setup(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer
	switch strings.ToLower(format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
		out = w
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	base.Store(&l)
	return nil
}

// For returns a logger tagged with the given component.
func For(component string) zerolog.Logger {
	return base.Load().With().Str("component", component).Logger()
}
