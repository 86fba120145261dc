package svcloop

import (
	"context"
	"fmt"
	"testing"

	"git.unix.lgbt/diamondburned/svcloop/svcloop/exec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandWork(t *testing.T) {
	newWork := func(proc exec.Process, err error) *CommandWork {
		w := NewCommandWork([]string{"backup", "--all"})
		w.startProc = func() (exec.Process, error) { return proc, err }
		return w
	}

	t.Run("success", func(t *testing.T) {
		w := newWork(exec.NewFakeProcess(10, 0, "ignored", 0), nil)
		assert.NoError(t, w.Run(context.Background()))
	})

	t.Run("exit status", func(t *testing.T) {
		w := newWork(exec.NewFakeProcess(10, 3, "", 0), nil)
		assert.EqualError(t, w.Run(context.Background()), `"backup" (pid 10) exited with status 3`)
	})

	t.Run("exit status with output", func(t *testing.T) {
		w := newWork(exec.NewFakeProcess(11, 1, "disk full\n", 0), nil)
		assert.EqualError(t, w.Run(context.Background()),
			"\"backup\" (pid 11) exited with status 1, output:\ndisk full")
	})

	t.Run("start failure", func(t *testing.T) {
		w := newWork(nil, errors.New("no such file"))
		err := w.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `failed to start "backup"`)
	})
}

func TestCommandWorkReal(t *testing.T) {
	w := NewCommandWork([]string{"sh", "-c", "echo nope >&2; exit 2"})

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with status 2")
	assert.Contains(t, err.Error(), "nope")

	w = NewCommandWork([]string{"true"})
	assert.NoError(t, w.Run(context.Background()))
}

func TestRunWorkPanic(t *testing.T) {
	err := runWork(context.Background(), WorkFunc(func(context.Context) error {
		panic(fmt.Sprintf("index %d out of range", 3))
	}))

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "work unit panicked: index 3 out of range", err.Error())
	assert.Contains(t, fmt.Sprintf("%+v", err), "runtime/debug.Stack")
	assert.NotContains(t, fmt.Sprintf("%v", err), "goroutine")
}
