// Package journal provides implementations of svcloop's Journaler interface:
// an append-only JSON lines file that can be read back newest-first, and a
// human readable writer that renders events through a zerolog logger.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/pkg/errors"
)

// multiWriter combines multiple journalers.
type multiWriter struct {
	writers []svcloop.Journaler
}

// MultiWriter creates a journaler that writes to multiple other journalers.
// Every writer is written to even if an earlier one fails; the first error is
// returned.
func MultiWriter(ws ...svcloop.Journaler) svcloop.Journaler {
	return &multiWriter{ws}
}

func (w *multiWriter) Write(event svcloop.Event) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// FileJournaler is a journaler that appends to a file. It takes no lock of its
// own since the instance lock already guarantees a single writer per service.
//
// Each Write is a single append of one complete line, so readers only ever see
// a partial entry as a torn last line after a power loss, which Reader skips.
type FileJournaler struct {
	Writer
	f *os.File
}

// OpenFile opens or creates the journal file at path, creating its directory
// if needed.
func OpenFile(path string) (*FileJournaler, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	return &FileJournaler{
		Writer: NewWriter(f),
		f:      f,
	}, nil
}

// Close syncs and closes the file.
func (f *FileJournaler) Close() error {
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return errors.Wrap(err, "failed to sync journal")
	}
	return f.f.Close()
}

// ReadStatusFromFile reads the Status of the last run from the given journal
// file.
func ReadStatusFromFile(path string) (*svcloop.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return svcloop.ReadStatus(NewReader(f))
}

// entry describes the JSON structure of an event as written.
type entry struct {
	Time time.Time     `json:"time"`
	Type string        `json:"type"`
	Data svcloop.Event `json:"data"`
}

// rawEntry is entry with its data not yet decoded.
type rawEntry struct {
	Time time.Time       `json:"time"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
