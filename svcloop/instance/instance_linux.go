package instance

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SocketLock is an instance lock held by binding a datagram socket in the
// abstract Unix namespace. Abstract sockets have no file, and the kernel frees
// the name as soon as the last descriptor is closed.
type SocketLock struct {
	name string
	fd   int
}

// AcquireSocket binds the abstract socket "@svcloop.<name>".
func AcquireSocket(name string) (*SocketLock, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lock socket")
	}

	// A leading @ puts the address in the abstract namespace.
	addr := &unix.SockaddrUnix{Name: "@svcloop." + name}

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)

		if errors.Is(err, unix.EADDRINUSE) {
			return nil, errors.Wrapf(ErrAlreadyRunning, "%s is bound", addr.Name)
		}

		return nil, errors.Wrap(err, "failed to bind lock socket")
	}

	return &SocketLock{name: name, fd: fd}, nil
}

func acquire(name string) (Lock, error) {
	l, err := AcquireSocket(name)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Name returns the service name.
func (s *SocketLock) Name() string { return s.name }

// Close closes the socket, freeing the name.
func (s *SocketLock) Close() error {
	return unix.Close(s.fd)
}
