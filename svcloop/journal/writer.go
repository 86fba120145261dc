package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/pkg/errors"
)

// Writer is a simple journaler that writes line-delimited JSON events into the
// writer.
type Writer struct {
	w   io.Writer
	now func() time.Time
}

var _ svcloop.Journaler = (*Writer)(nil)

// NewWriter creates a new journal writer.
func NewWriter(w io.Writer) Writer {
	return Writer{w: w, now: time.Now}
}

// Write writes the given event into the writer. Each event is written with a
// single Write call.
func (l Writer) Write(ev svcloop.Event) error {
	evJSON := entry{
		Time: l.now().UTC(),
		Type: ev.Type(),
		Data: ev,
	}

	buf := bytes.Buffer{}
	buf.Grow(512)

	// Encode already terminates the line.
	if err := json.NewEncoder(&buf).Encode(evJSON); err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	_, err := l.w.Write(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, "failed to write event")
	}

	return nil
}
