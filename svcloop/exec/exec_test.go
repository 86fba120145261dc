package exec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartProcess(t *testing.T) {
	p, err := StartProcess([]string{"sh", "-c", "echo out; echo err >&2; exit 4"}, "", nil)
	require.NoError(t, err)
	assert.Positive(t, p.PID())

	s := p.Wait()
	require.NoError(t, s.Error)
	assert.False(t, s.Success())
	assert.Equal(t, 4, s.Code)
	assert.Contains(t, string(s.Output), "out")
	assert.Contains(t, string(s.Output), "err")
}

func TestStartProcessDir(t *testing.T) {
	dir := t.TempDir()

	p, err := StartProcess([]string{"pwd"}, dir, []string{"PATH=/usr/bin:/bin"})
	require.NoError(t, err)

	s := p.Wait()
	assert.True(t, s.Success())
	assert.Contains(t, string(s.Output), dir)
}

func TestStartProcessMaxOutput(t *testing.T) {
	old := MaxOutput
	MaxOutput = 16
	t.Cleanup(func() { MaxOutput = old })

	p, err := StartProcess([]string{"sh", "-c", "yes | head -c 100000"}, "", nil)
	require.NoError(t, err)

	s := p.Wait()
	assert.True(t, s.Success())
	assert.Equal(t, strings.Repeat("y\n", 8), string(s.Output))
}

func TestStartProcessErrors(t *testing.T) {
	_, err := StartProcess(nil, "", nil)
	assert.Error(t, err)

	_, err = StartProcess([]string{"definitely-not-a-command-svcloop"}, "", nil)
	assert.ErrorContains(t, err, "failed to find executable")
}

func TestFakeProcess(t *testing.T) {
	p := NewFakeProcess(3, 1, "out", time.Millisecond)

	s := p.Wait()
	assert.Equal(t, 3, p.PID())
	assert.Equal(t, ExitStatus{PID: 3, Code: 1, Output: []byte("out")}, s)
}
