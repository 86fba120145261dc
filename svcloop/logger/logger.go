// Package logger constructs the zerolog logger shared by every component of a
// service. There is no global logger: the one returned by New is passed down
// explicitly.
package logger

import (
	"io"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New creates a logger for the named service. Debug mode logs human readable
// lines at the debug level; Production mode logs JSON at the info level so a
// log collector can parse it.
func New(service string, mode svcloop.RunMode, out io.Writer) zerolog.Logger {
	w := zerolog.SyncWriter(out)

	level := zerolog.InfoLevel
	if mode == svcloop.Debug {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !isTerminal(out),
			TimeFormat: time.Kitchen,
		}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Str("service", service)

	if hostname, err := os.Hostname(); err == nil && mode == svcloop.Production {
		ctx = ctx.Str("hostname", hostname)
	}

	return ctx.Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
