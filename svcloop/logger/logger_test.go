package logger

import (
	"bytes"
	"strings"
	"testing"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/stretchr/testify/assert"
)

func TestNewProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New("demo", svcloop.Production, &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "production logs must be JSON: %q", out)
	assert.Contains(t, out, `"service":"demo"`)
	assert.Contains(t, out, `"message":"shown"`)
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New("demo", svcloop.Debug, &buf)

	clog := Component(log, "server")
	clog.Debug().Msg("visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "server")
	assert.False(t, strings.HasPrefix(out, "{"), "debug logs must be human readable: %q", out)
}
