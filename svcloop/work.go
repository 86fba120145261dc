package svcloop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"git.unix.lgbt/diamondburned/svcloop/svcloop/exec"
	"github.com/pkg/errors"
)

// Work is one cycle of business logic. Run is called by the supervisor from a
// single goroutine; it is never called concurrently with itself.
type Work interface {
	Run(ctx context.Context) error
}

// WorkFunc is a function that implements Work.
type WorkFunc func(ctx context.Context) error

// Run calls f.
func (f WorkFunc) Run(ctx context.Context) error { return f(ctx) }

// CommandWork runs an external command every cycle. A non-zero exit status is
// a failed cycle; the error carries the command's output.
type CommandWork struct {
	Argv []string
	Dir  string
	Env  []string // nil inherits our environment

	startProc func() (exec.Process, error)
}

var _ Work = (*CommandWork)(nil)

// NewCommandWork creates a work unit that runs argv.
func NewCommandWork(argv []string) *CommandWork {
	w := &CommandWork{Argv: argv}
	w.startProc = func() (exec.Process, error) {
		return exec.StartProcess(w.Argv, w.Dir, w.Env)
	}
	return w
}

// Run starts the command and waits for it to exit. The context is not used to
// kill the command: an in-flight cycle always runs to completion.
func (w *CommandWork) Run(ctx context.Context) error {
	p, err := w.startProc()
	if err != nil {
		return errors.Wrapf(err, "failed to start %q", w.Argv[0])
	}

	status := p.Wait()
	if status.Success() {
		return nil
	}

	if status.Error != nil {
		return errors.Wrapf(status.Error, "failed to wait for %q (pid %d)", w.Argv[0], status.PID)
	}

	out := bytes.TrimSpace(status.Output)
	if len(out) == 0 {
		return errors.Errorf("%q (pid %d) exited with status %d", w.Argv[0], status.PID, status.Code)
	}

	return errors.Errorf("%q (pid %d) exited with status %d, output:\n%s", w.Argv[0], status.PID, status.Code, out)
}

// PanicError is returned in place of a panic raised by a work unit.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("work unit panicked: %v", err.Value)
}

// Format prints the stack captured at the panic for %+v.
func (err *PanicError) Format(s fmt.State, verb rune) {
	io.WriteString(s, err.Error())
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, "\n")
		s.Write(err.Stack)
	}
}

// runWork calls w.Run and turns a panic into a *PanicError.
func runWork(ctx context.Context, w Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return w.Run(ctx)
}
