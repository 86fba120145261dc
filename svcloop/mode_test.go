package svcloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDebug(t *testing.T) {
	tests := []struct {
		value       string
		set         bool
		interactive bool
		mode        RunMode
		err         bool
	}{
		{"", false, false, Production, false},
		{"", false, true, Debug, false},
		{"true", true, false, Debug, false},
		{"TRUE", true, false, Debug, false},
		{"false", true, true, Production, false},
		{"False", true, true, Production, false},
		{"", true, true, Production, true},
		{"1", true, false, Production, true},
		{"yes", true, false, Production, true},
	}

	for _, test := range tests {
		mode, err := ParseDebug(test.value, test.set, test.interactive)
		if test.err {
			assert.ErrorIs(t, err, ErrInvalidDebug, "value %q", test.value)
			continue
		}

		assert.NoError(t, err, "value %q", test.value)
		assert.Equal(t, test.mode, mode, "value %q set=%v interactive=%v", test.value, test.set, test.interactive)
	}
}

func TestRunMode(t *testing.T) {
	assert.Equal(t, 10*time.Second, Debug.Interval())
	assert.Equal(t, 60*time.Second, Production.Interval())
	assert.Equal(t, "debug", Debug.String())
	assert.Equal(t, "production", Production.String())
}
