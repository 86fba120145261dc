package svcloop

import (
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// DebugInterval is the time between two cycles in Debug mode.
const DebugInterval = 10 * time.Second

// ProductionInterval is the time between two cycles in Production mode.
const ProductionInterval = 60 * time.Second

// PollIncrement is how often the supervisor checks whether a cycle is due. It
// bounds the latency of run requests and shutdown.
const PollIncrement = time.Second

// RunMode decides the cycle interval and the log verbosity. It is resolved
// once on startup.
type RunMode uint8

const (
	Production RunMode = iota
	Debug
)

// String returns "debug" or "production".
func (m RunMode) String() string {
	if m == Debug {
		return "debug"
	}
	return "production"
}

// Interval returns the cycle interval of the mode.
func (m RunMode) Interval() time.Duration {
	if m == Debug {
		return DebugInterval
	}
	return ProductionInterval
}

// ErrInvalidDebug is returned by ParseDebug if DEBUG is neither true nor
// false.
var ErrInvalidDebug = errors.New("DEBUG environment variable not set to 'true' or 'false'")

// ParseDebug resolves the RunMode from the value of the DEBUG environment
// variable. If the variable is not set, Debug is picked only when running
// interactively.
func ParseDebug(value string, set, interactive bool) (RunMode, error) {
	if !set {
		if interactive {
			return Debug, nil
		}
		return Production, nil
	}

	switch strings.ToLower(value) {
	case "true":
		return Debug, nil
	case "false":
		return Production, nil
	default:
		return Production, errors.Wrapf(ErrInvalidDebug, "got %q", value)
	}
}

// IsInteractive returns true if stdin is a terminal, which is never the case
// when started by an init system.
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
