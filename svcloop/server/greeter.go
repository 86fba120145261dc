package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Greeter is a line-oriented handler that writes Message followed by a newline
// Count times, pausing Interval before each line.
type Greeter struct {
	Message  string
	Count    int
	Interval time.Duration
}

var _ Handler = Greeter{}

// NewGreeter creates the default greeter: five "hello" lines a second apart.
func NewGreeter() Greeter {
	return Greeter{
		Message:  "hello",
		Count:    5,
		Interval: time.Second,
	}
}

// ServeConn implements Handler. A peer that hangs up halfway yields an error
// matching ErrPeerGone. The context is not watched: sessions are short and are
// abandoned on shutdown.
func (g Greeter) ServeConn(ctx context.Context, conn net.Conn) error {
	line := []byte(g.Message + "\n")

	for i := 0; i < g.Count; i++ {
		time.Sleep(g.Interval)

		if _, err := conn.Write(line); err != nil {
			if IsPeerGone(err) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return errors.Wrapf(ErrPeerGone, "after %d of %d lines: %v", i, g.Count, err)
			}
			return errors.Wrap(err, "failed to write line")
		}
	}

	return nil
}
