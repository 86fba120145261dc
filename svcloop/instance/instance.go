// Package instance guarantees that only one process per service identity runs
// on a host. Every lock is backed by a kernel object that is released when the
// process dies, however it dies, so a crash never leaves a stale lock behind.
package instance

import (
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// ErrAlreadyRunning is returned if another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lock is a held instance lock. Close releases it early; there is no need to
// call it before exiting.
type Lock interface {
	// Name returns the identity the lock was acquired for.
	Name() string
	Close() error
}

// Acquire acquires the instance lock for the given service name. On Linux this
// binds an abstract Unix socket, elsewhere it locks a file in the temporary
// directory.
func Acquire(name string) (Lock, error) {
	if name == "" {
		return nil, errors.New("empty instance name")
	}

	return acquire(name)
}

// FileLock is an instance lock held with flock(2) on a file.
type FileLock struct {
	name string
	l    *flock.Flock
}

// AcquireFile acquires the instance lock by flocking the file at path, which
// is created if needed.
func AcquireFile(path string) (*FileLock, error) {
	l := flock.New(path)

	locked, err := l.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	if !locked {
		return nil, errors.Wrapf(ErrAlreadyRunning, "%s is locked", path)
	}

	return &FileLock{name: path, l: l}, nil
}

// Name returns the path of the lock file.
func (f *FileLock) Name() string { return f.name }

// Close releases the flock.
func (f *FileLock) Close() error {
	return f.l.Unlock()
}
