// Package server implements the connection-driven service shape: a listener
// on a TCP address or a Unix socket path whose accepted connections are each
// handled independently.
package server

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Handler handles a single connection. The server closes the connection once
// ServeConn returns.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn) error
}

// HandlerFunc is a function that implements Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn) error

// ServeConn calls f.
func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) error {
	return f(ctx, conn)
}

// ErrPeerGone is returned by handlers when the client disconnected before the
// session was over. It is an expected outcome, not a failure.
var ErrPeerGone = errors.New("peer disconnected early")

// Opts configures a Server.
type Opts struct {
	// Sequential handles connections one at a time on the accepting goroutine
	// instead of one goroutine per connection.
	Sequential bool
	// Metrics is optional.
	Metrics *svcloop.Metrics
}

// Server accepts connections on a single endpoint.
type Server struct {
	network string
	address string
	handler Handler
	j       svcloop.Journaler
	opts    Opts

	ready chan struct{}
	addr  net.Addr
}

// New creates a new server. Network is either "tcp" or "unix"; for "unix",
// address is the socket path.
func New(network, address string, h Handler, j svcloop.Journaler, opts Opts) *Server {
	if j == nil {
		j = svcloop.NopJournaler
	}

	return &Server{
		network: network,
		address: address,
		handler: h,
		j:       j,
		opts:    opts,
		ready:   make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is accepting.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address. It is only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve listens and accepts connections until ctx is canceled, then returns
// nil. Connection handlers still running at that point are abandoned rather
// than waited for. For Unix sockets, a stale socket file is removed before
// listening and the socket file is removed on every return.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}

	if s.network == "unix" {
		defer s.removeSocket(false)
	}
	defer ln.Close()

	s.addr = ln.Addr()
	close(s.ready)

	s.j.Write(&svcloop.EventListening{
		Network: s.network,
		Address: ln.Addr().String(),
	})

	// Closing the listener is what breaks Accept out.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	var tempDelay time.Duration

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.j.Write(&svcloop.EventShutdown{Component: "server"})
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = nextDelay(tempDelay)
				s.j.Write(&svcloop.EventWarning{
					Component: "server",
					Error:     "accept error: " + err.Error(),
				})
				time.Sleep(tempDelay)
				continue
			}

			return errors.Wrap(err, "failed to accept")
		}

		tempDelay = 0

		if s.opts.Sequential {
			s.serveConn(ctx, conn)
			continue
		}

		go s.serveConn(ctx, conn)
	}
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	switch s.network {
	case "tcp", "tcp4", "tcp6":
		lc := net.ListenConfig{Control: reuseAddr}

		ln, err := lc.Listen(ctx, s.network, s.address)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to listen on %s", s.address)
		}

		return ln, nil

	case "unix":
		// A socket file left behind by an instance that did not exit cleanly
		// would make the bind fail.
		s.removeSocket(true)

		ln, err := net.Listen("unix", s.address)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to listen on %s", s.address)
		}

		// Serve removes the file itself, so the removal is journaled.
		ln.(*net.UnixListener).SetUnlinkOnClose(false)

		return ln, nil

	default:
		return nil, errors.Errorf("unsupported network %q", s.network)
	}
}

func (s *Server) removeSocket(stale bool) {
	err := os.Remove(s.address)
	if err == nil {
		s.j.Write(&svcloop.EventSocketRemoved{Path: s.address, Stale: stale})
		return
	}

	if !os.IsNotExist(err) {
		s.j.Write(&svcloop.EventWarning{
			Component: "server",
			Error:     "failed to remove socket: " + err.Error(),
		})
	}
}

// reuseAddr sets SO_REUSEADDR so a restarted server can bind while sockets of
// the previous one linger in TIME_WAIT.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}

	return errors.Wrap(sockErr, "failed to set SO_REUSEADDR")
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}

	d *= 2
	if d > time.Second {
		d = time.Second
	}

	return d
}
