package svcloop

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// Journaler describes an event logger. Implementations must be safe for
// concurrent use, since connection handlers write from their own goroutines.
type Journaler interface {
	Write(Event) error
}

// JournalReader reads a journal from the newest entry to the oldest. Read
// returns io.EOF once the start of the journal is reached.
type JournalReader interface {
	Read() (Event, time.Time, error)
}

// NopJournaler discards every event.
var NopJournaler Journaler = nopJournaler{}

type nopJournaler struct{}

func (nopJournaler) Write(Event) error { return nil }

// Status summarizes the latest run of a service as recorded in its journal.
type Status struct {
	Name      string
	PID       int
	Mode      string
	StartedAt time.Time

	Cycles   int
	Failures int
	Alerts   int

	LastCycle       time.Time
	LastCycleFailed bool
	LastDetail      string // detail of the last failure, if the last cycle failed
	Stopped         bool   // a shutdown was journaled after the last start
}

// ReadStatus walks the journal backwards until the last acquired lock event
// and summarizes everything recorded after it. An error is returned if the
// journal has no start event.
func ReadStatus(r JournalReader) (*Status, error) {
	var status Status
	var seenCycle bool

	for {
		ev, t, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("no service start found in journal")
			}
			return nil, errors.Wrap(err, "failed to read journal")
		}

		switch ev := ev.(type) {
		case *EventAcquired:
			status.Name = ev.Name
			status.PID = ev.PID
			status.Mode = ev.Mode
			status.StartedAt = t
			return &status, nil

		case *EventShutdown:
			// Only a shutdown seen before any later cycle counts.
			if !seenCycle {
				status.Stopped = true
			}

		case *EventCycleCompleted:
			status.Cycles++
			if !seenCycle {
				seenCycle = true
				status.LastCycle = t
			}

		case *EventCycleFailed:
			status.Cycles++
			status.Failures++
			if !seenCycle {
				seenCycle = true
				status.LastCycle = t
				status.LastCycleFailed = true
				status.LastDetail = ev.Detail
			}

		case *EventAlertSent:
			status.Alerts++
		}
	}
}
