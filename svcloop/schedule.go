package svcloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reason describes why a cycle was started.
type Reason string

const (
	ReasonStartup   Reason = "startup"
	ReasonInterval  Reason = "interval"
	ReasonRequested Reason = "requested"
)

// Schedule holds the state shared between the supervisor loop and whoever
// requests an immediate run. A zero-value Schedule is not valid; use
// NewSchedule.
type Schedule struct {
	requested atomic.Bool
	wake      chan struct{}

	mu      sync.Mutex
	lastRun time.Time
	hasRun  bool
}

// NewSchedule creates a schedule that is due immediately.
func NewSchedule() *Schedule {
	return &Schedule{
		wake: make(chan struct{}, 1),
	}
}

// RequestRun asks for a cycle as soon as possible regardless of the elapsed
// time. It never blocks and is safe to call from any goroutine. Requests made
// before the supervisor consumes the first one collapse into it.
func (s *Schedule) RequestRun() {
	s.requested.Store(true)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Requested returns true if a run request is pending.
func (s *Schedule) Requested() bool {
	return s.requested.Load()
}

// Wake returns a channel that receives when RequestRun is called. It has a
// single slot, so at most one wake-up is ever pending.
func (s *Schedule) Wake() <-chan struct{} {
	return s.wake
}

// Due reports whether a cycle should start now. A pending run request is
// consumed by this call.
func (s *Schedule) Due(now time.Time, interval time.Duration) (bool, Reason) {
	if s.requested.CompareAndSwap(true, false) {
		return true, ReasonRequested
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRun {
		return true, ReasonStartup
	}

	if now.Sub(s.lastRun) >= interval {
		return true, ReasonInterval
	}

	return false, ""
}

// MarkRun records the time a cycle finished.
func (s *Schedule) MarkRun(now time.Time) {
	s.mu.Lock()
	s.lastRun = now
	s.hasRun = true
	s.mu.Unlock()
}

// LastRun returns the time of the last cycle. False is returned if no cycle
// has run yet.
func (s *Schedule) LastRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastRun, s.hasRun
}
