package svcloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSupervisor starts sv in the background. The returned function cancels it
// and waits for Run to return.
func runSupervisor(t *testing.T, sv *Supervisor) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- sv.Run(ctx) }()

	var stopped bool
	stop = func() {
		if stopped {
			return
		}
		stopped = true

		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("supervisor did not stop")
		}
	}

	t.Cleanup(stop)
	return stop
}

// countingWork counts invocations and reports each one on ran.
type countingWork struct {
	runs atomic.Int32
	ran  chan int32
	fn   func(ctx context.Context, n int32) error
}

func newCountingWork(fn func(ctx context.Context, n int32) error) *countingWork {
	return &countingWork{
		ran: make(chan int32, 64),
		fn:  fn,
	}
}

func (w *countingWork) Run(ctx context.Context) error {
	n := w.runs.Add(1)
	defer func() { w.ran <- n }()

	if w.fn != nil {
		return w.fn(ctx, n)
	}
	return nil
}

func waitRun(t *testing.T, w *countingWork, timeout time.Duration) int32 {
	t.Helper()

	select {
	case n := <-w.ran:
		return n
	case <-time.After(timeout):
		t.Fatalf("work was not run within %v", timeout)
		return 0
	}
}

type recordingAlerter struct {
	details chan string
	err     error
}

func (a *recordingAlerter) Alert(ctx context.Context, detail string, to []string) error {
	a.details <- detail
	return a.err
}

func TestSupervisorFirstRunImmediate(t *testing.T) {
	j := &mockJournal{}
	w := newCountingWork(nil)

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{
		Interval:      time.Hour,
		PollIncrement: 10 * time.Millisecond,
	})
	sv.newID = func() string { return "id" }

	stop := runSupervisor(t, sv)
	waitRun(t, w, time.Second)
	stop()

	journals := j.Journals()
	require.Len(t, journals, 3)
	assert.Equal(t, &EventCycleStarted{ID: "id", Reason: ReasonStartup}, journals[0])
	assert.IsType(t, &EventCycleCompleted{}, journals[1])
	assert.Equal(t, &EventShutdown{Component: "supervisor"}, journals[2])

	assert.Equal(t, ShuttingDown, sv.State())
}

func TestSupervisorRequestRun(t *testing.T) {
	j := &mockJournal{}
	w := newCountingWork(nil)
	sched := NewSchedule()

	sv := NewSupervisor(w, sched, j, SupervisorOpts{
		Interval:      time.Hour,
		PollIncrement: time.Second,
	})

	runSupervisor(t, sv)
	waitRun(t, w, time.Second)

	sched.RequestRun()
	assert.Equal(t, int32(2), waitRun(t, w, PollIncrement))

	var started []Reason
	for _, ev := range j.Journals() {
		if ev, ok := ev.(*EventCycleStarted); ok {
			started = append(started, ev.Reason)
		}
	}
	assert.Equal(t, []Reason{ReasonStartup, ReasonRequested}, started)
}

func TestSupervisorRequestsCollapse(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	sched := NewSchedule()

	w := newCountingWork(func(ctx context.Context, n int32) error {
		if n == 1 {
			entered <- struct{}{}
			<-gate
		}
		return nil
	})

	sv := NewSupervisor(w, sched, nil, SupervisorOpts{
		Interval:      time.Hour,
		PollIncrement: 5 * time.Millisecond,
	})

	runSupervisor(t, sv)
	<-entered

	assert.Equal(t, Invoking, sv.State())

	sched.RequestRun()
	sched.RequestRun()
	sched.RequestRun()
	close(gate)

	waitRun(t, w, time.Second)
	waitRun(t, w, time.Second)

	// Give the loop a few poll increments to prove no third run happens.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), w.runs.Load())
	assert.Equal(t, Idle, sv.State())
}

func TestSupervisorFailureIsolation(t *testing.T) {
	j := &mockJournal{}
	alerter := &recordingAlerter{details: make(chan string, 8)}

	w := newCountingWork(func(ctx context.Context, n int32) error {
		if n == 1 {
			return errors.New("database is on fire")
		}
		return nil
	})

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{
		Interval:      50 * time.Millisecond,
		PollIncrement: 5 * time.Millisecond,
		Alerter:       alerter,
		AlertTo:       []string{"ops@example.com"},
	})

	stop := runSupervisor(t, sv)

	first := time.Now()
	waitRun(t, w, time.Second)

	select {
	case detail := <-alerter.details:
		assert.Contains(t, detail, "database is on fire")
		// %+v of a pkg/errors error carries the stack.
		assert.Contains(t, detail, "TestSupervisorFailureIsolation")
	case <-time.After(time.Second):
		t.Fatal("no alert sent")
	}

	waitRun(t, w, time.Second)
	assert.GreaterOrEqual(t, time.Since(first), 50*time.Millisecond,
		"failed cycle must wait for the full interval")

	stop()

	var failed *EventCycleFailed
	var sent *EventAlertSent
	var reasons []Reason

	for _, ev := range j.Journals() {
		switch ev := ev.(type) {
		case *EventCycleFailed:
			failed = ev
		case *EventAlertSent:
			sent = ev
		case *EventCycleStarted:
			reasons = append(reasons, ev.Reason)
		}
	}

	require.NotNil(t, failed)
	require.NotNil(t, sent)
	assert.Equal(t, failed.ID, sent.ID)
	assert.Equal(t, []string{"ops@example.com"}, sent.To)
	assert.Equal(t, []Reason{ReasonStartup, ReasonInterval}, reasons[:2])
}

func TestSupervisorPanic(t *testing.T) {
	j := &mockJournal{}

	w := newCountingWork(func(ctx context.Context, n int32) error {
		if n == 1 {
			panic("nil map write")
		}
		return nil
	})

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{
		Interval:      10 * time.Millisecond,
		PollIncrement: 5 * time.Millisecond,
	})

	stop := runSupervisor(t, sv)
	waitRun(t, w, time.Second)
	waitRun(t, w, time.Second)
	stop()

	var failed *EventCycleFailed
	for _, ev := range j.Journals() {
		if ev, ok := ev.(*EventCycleFailed); ok {
			failed = ev
			break
		}
	}

	require.NotNil(t, failed)
	assert.Contains(t, failed.Detail, "work unit panicked: nil map write")
	assert.Contains(t, failed.Detail, "goroutine")
}

func TestSupervisorAlertFailure(t *testing.T) {
	j := &mockJournal{}
	alerter := &recordingAlerter{
		details: make(chan string, 8),
		err:     errors.New("smtp down"),
	}

	w := newCountingWork(func(ctx context.Context, n int32) error {
		return errors.New("bad")
	})

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{
		Interval:      time.Hour,
		PollIncrement: 5 * time.Millisecond,
		Alerter:       alerter,
		AlertTo:       []string{"a@example.com"},
	})

	stop := runSupervisor(t, sv)
	waitRun(t, w, time.Second)
	stop()

	assert.Contains(t, j.Types(), eventAlertFailed)
	assert.NotContains(t, j.Types(), eventAlertSent)
}

func TestSupervisorShutdownWaitsForCycle(t *testing.T) {
	j := &mockJournal{}
	gate := make(chan struct{})
	entered := make(chan struct{})
	ctxErr := make(chan error, 1)

	w := newCountingWork(func(ctx context.Context, n int32) error {
		close(entered)
		<-gate
		ctxErr <- ctx.Err()
		return nil
	})

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{
		Interval:      time.Hour,
		PollIncrement: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	<-entered
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the cycle finished")
	}

	assert.NoError(t, <-ctxErr, "work context must not be canceled by shutdown")
	assert.Equal(t, []string{
		eventCycleStarted,
		eventCycleCompleted,
		eventShutdown,
	}, j.Types())
}

func TestSupervisorCanceledBeforeStart(t *testing.T) {
	j := &mockJournal{}
	w := newCountingWork(nil)

	sv := NewSupervisor(w, NewSchedule(), j, SupervisorOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sv.Run(ctx))
	assert.Zero(t, w.runs.Load())
	assert.Equal(t, []string{eventShutdown}, j.Types())
}

func TestSupervisorDefaults(t *testing.T) {
	sv := NewSupervisor(WorkFunc(func(context.Context) error { return nil }), NewSchedule(), nil, SupervisorOpts{})

	assert.Equal(t, ProductionInterval, sv.Interval)
	assert.Equal(t, PollIncrement, sv.PollIncrement)
	assert.Equal(t, Idle, sv.State())
	assert.Equal(t, "idle", sv.State().String())
}
