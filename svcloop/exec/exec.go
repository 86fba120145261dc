// Package exec provides an abstraction around package os' Process
// implementation for easier testing.
package exec

import (
	"bytes"
	"io"
	"os"
	osexec "os/exec"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// MaxOutput is the number of bytes of combined stdout and stderr kept for each
// process. Anything written past it is discarded.
var MaxOutput = 64 * 1024

// Process describes a command process.
type Process interface {
	PID() int
	Wait() ExitStatus
}

// ExitStatus is a process' exit status.
type ExitStatus struct {
	PID    int
	Code   int // -1 if killed by a signal
	Output []byte
	Error  error
}

// Success returns true if the process exited normally with code 0.
func (s ExitStatus) Success() bool {
	return s.Error == nil && s.Code == 0
}

type process struct {
	*os.Process
	output *limitedBuffer
	read   chan struct{}
}

var _ Process = (*process)(nil)

// StartProcess creates a new command process on the system. Its stdin is
// /dev/null and its stdout and stderr are captured together. Wait must be
// called on the same goroutine.
func StartProcess(argv []string, dir string, env []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	// Lock this goroutine to the OS thread for Pdeathsig.
	// See https://github.com/golang/go/issues/27505.
	runtime.LockOSThread()

	proc, err := startProcess(argv, dir, env)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}

	return proc, nil
}

func startProcess(argv []string, dir string, env []string) (*process, error) {
	path, err := osexec.LookPath(argv[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to find executable")
	}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open null device")
	}
	defer devnull.Close()

	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output pipe")
	}

	p, err := os.StartProcess(path, argv, &os.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: []*os.File{devnull, w, w},
		Sys:   sysProcAttr(),
	})

	// The child has its own copy of the write end now.
	w.Close()

	if err != nil {
		r.Close()
		return nil, err
	}

	proc := &process{
		Process: p,
		output:  &limitedBuffer{max: MaxOutput},
		read:    make(chan struct{}),
	}

	go func() {
		io.Copy(proc.output, r)
		r.Close()
		close(proc.read)
	}()

	return proc, nil
}

func (proc *process) PID() int {
	return proc.Pid
}

// Wait waits for the process to exit and for its output to be drained. It must
// be called on the same goroutine as StartProcess.
func (proc *process) Wait() ExitStatus {
	s, err := proc.Process.Wait()
	runtime.UnlockOSThread()

	if err != nil {
		return ExitStatus{PID: proc.Pid, Code: -1, Error: err}
	}

	<-proc.read

	return ExitStatus{
		PID:    proc.Pid,
		Code:   s.ExitCode(),
		Output: proc.output.Bytes(),
	}
}

// limitedBuffer keeps the first max bytes written to it and pretends to accept
// the rest, so the writer never blocks on a full pipe.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]byte(nil), b.buf.Bytes()...)
}
