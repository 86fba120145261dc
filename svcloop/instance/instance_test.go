package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), os.Getpid())
}

func TestAcquire(t *testing.T) {
	name := uniqueName(t)

	l, err := Acquire(name)
	require.NoError(t, err)
	assert.Equal(t, name, l.Name())

	_, err = Acquire(name)
	assert.True(t, errors.Is(err, ErrAlreadyRunning), "second acquire: %v", err)

	require.NoError(t, l.Close())

	l, err = Acquire(name)
	require.NoError(t, err, "lock should be free after close")
	l.Close()
}

func TestAcquireDistinctNames(t *testing.T) {
	a, err := Acquire(uniqueName(t) + "-a")
	require.NoError(t, err)
	defer a.Close()

	b, err := Acquire(uniqueName(t) + "-b")
	require.NoError(t, err)
	defer b.Close()
}

func TestAcquireEmptyName(t *testing.T) {
	_, err := Acquire("")
	assert.Error(t, err)
}

func TestAcquireFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.lock")

	l, err := AcquireFile(path)
	require.NoError(t, err)

	_, err = AcquireFile(path)
	assert.True(t, errors.Is(err, ErrAlreadyRunning), "second acquire: %v", err)

	require.NoError(t, l.Close())

	l, err = AcquireFile(path)
	require.NoError(t, err)
	l.Close()
}
