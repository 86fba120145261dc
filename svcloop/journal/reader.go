package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/journal/backwardio"
	"github.com/pkg/errors"
)

// Reader implements a primitive reader that parses journals written by Writer
// from the bottom (newest) to the top (oldest).
type Reader struct {
	b *backwardio.Scanner
}

var _ svcloop.JournalReader = (*Reader)(nil)

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewScanner(r)}
}

// Read reads a single entry, starting from the end of the file. An EOF error
// is returned once the file has been fully consumed. Lines that are not valid
// JSON, such as a torn last write, are skipped.
func (r *Reader) Read() (svcloop.Event, time.Time, error) {
	for {
		line, err := r.b.ReadUntil('\n')
		if err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return nil, time.Time{}, errors.Wrap(err, "journal entry too long")
			}
			return nil, time.Time{}, err
		}

		if len(line) == 0 {
			continue
		}

		var raw rawEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		event := svcloop.NewEvent(raw.Type)
		if event == nil {
			return nil, time.Time{}, fmt.Errorf("unknown event %q", raw.Type)
		}

		if err := json.Unmarshal(raw.Data, event); err != nil {
			return nil, time.Time{}, errors.Wrap(err, "failed to decode event data")
		}

		return event, raw.Time, nil
	}
}
