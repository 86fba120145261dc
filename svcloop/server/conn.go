package server

import (
	"context"
	"net"
	"syscall"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/pkg/errors"
)

// serveConn runs the handler for one connection and reports how it ended.
// Handler failures and panics stay within the connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	remote := remoteName(conn)

	s.opts.Metrics.ConnOpened()
	s.j.Write(&svcloop.EventConnAccepted{Remote: remote})

	err := s.handle(ctx, conn)
	conn.Close()

	ev := svcloop.EventConnClosed{Remote: remote}
	outcome := "completed"

	switch {
	case err == nil:
	case IsPeerGone(err):
		ev.Early = true
		outcome = "early"
	default:
		ev.Error = err.Error()
		outcome = "error"
	}

	s.opts.Metrics.ConnClosed(outcome)
	s.j.Write(&ev)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("handler panicked: %v", r)
		}
	}()

	return s.handler.ServeConn(ctx, conn)
}

// IsPeerGone returns true if err means the other end of the connection went
// away: ErrPeerGone, a broken pipe or a connection reset.
func IsPeerGone(err error) bool {
	return errors.Is(err, ErrPeerGone) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// remoteName returns a printable name for the peer. Unix socket peers are
// usually unnamed.
func remoteName(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return conn.LocalAddr().Network() + ":anonymous"
	}
	return addr.String()
}
