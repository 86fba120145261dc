package svcloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the state of a Supervisor.
type State int32

const (
	Idle State = iota
	Invoking
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Invoking:
		return "invoking"
	case ShuttingDown:
		return "shutting down"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SupervisorOpts configures a Supervisor. Zero values pick the defaults.
type SupervisorOpts struct {
	// Interval is the time between the end of a cycle and the start of the
	// next one. Defaults to ProductionInterval.
	Interval time.Duration
	// PollIncrement bounds how late a run request or shutdown is noticed.
	// Defaults to PollIncrement.
	PollIncrement time.Duration
	// Alerter is told about failed cycles. Nil disables alerting.
	Alerter Alerter
	// AlertTo is the destination list given to the Alerter.
	AlertTo []string
	// Metrics is optional.
	Metrics *Metrics
}

// Supervisor runs a Work on a Schedule. A failing or panicking work unit is
// reported and alerted about, but it never stops the supervisor.
type Supervisor struct {
	Interval      time.Duration
	PollIncrement time.Duration
	AlertTo       []string

	j       Journaler
	work    Work
	sched   *Schedule
	alerter Alerter
	metrics *Metrics

	now   func() time.Time
	newID func() string

	state atomic.Int32
}

// NewSupervisor creates a new supervisor. Run must be called to start it.
func NewSupervisor(work Work, sched *Schedule, j Journaler, opts SupervisorOpts) *Supervisor {
	if opts.Interval <= 0 {
		opts.Interval = ProductionInterval
	}
	if opts.PollIncrement <= 0 {
		opts.PollIncrement = PollIncrement
	}
	if j == nil {
		j = NopJournaler
	}

	return &Supervisor{
		Interval:      opts.Interval,
		PollIncrement: opts.PollIncrement,
		AlertTo:       opts.AlertTo,

		j:       j,
		work:    work,
		sched:   sched,
		alerter: opts.Alerter,
		metrics: opts.Metrics,

		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// State returns the current state of the supervisor.
func (sv *Supervisor) State() State {
	return State(sv.state.Load())
}

// Run runs the scheduling loop until ctx is canceled. The first cycle starts
// right away. A cycle that is running when ctx is canceled is allowed to
// finish. Run always returns nil.
func (sv *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(sv.PollIncrement)
	defer ticker.Stop()

	for {
		// Shutdown takes priority over a due cycle.
		if ctx.Err() != nil {
			sv.shutdown()
			return nil
		}

		if due, reason := sv.sched.Due(sv.now(), sv.Interval); due {
			sv.invoke(ctx, reason)
			continue
		}

		select {
		case <-ctx.Done():
			sv.shutdown()
			return nil
		case <-sv.sched.Wake():
		case <-ticker.C:
		}
	}
}

func (sv *Supervisor) shutdown() {
	sv.state.Store(int32(ShuttingDown))
	sv.j.Write(&EventShutdown{Component: "supervisor"})
}

// invoke runs a single cycle.
func (sv *Supervisor) invoke(ctx context.Context, reason Reason) {
	id := sv.newID()

	sv.state.Store(int32(Invoking))
	defer sv.state.Store(int32(Idle))

	sv.j.Write(&EventCycleStarted{
		ID:     id,
		Reason: reason,
	})

	// Shutdown must not interrupt a cycle halfway through.
	workCtx := context.WithoutCancel(ctx)

	start := time.Now()
	err := runWork(workCtx, sv.work)
	duration := time.Since(start)

	// Failed cycles wait for the full interval as well.
	sv.sched.MarkRun(sv.now())
	sv.metrics.ObserveCycle(duration, err != nil)

	if err == nil {
		sv.j.Write(&EventCycleCompleted{
			ID:       id,
			Duration: duration,
		})
		return
	}

	detail := fmt.Sprintf("%+v", err)

	sv.j.Write(&EventCycleFailed{
		ID:       id,
		Duration: duration,
		Detail:   detail,
	})

	sv.alert(workCtx, id, detail)
}

func (sv *Supervisor) alert(ctx context.Context, id, detail string) {
	if sv.alerter == nil {
		return
	}

	err := safeAlert(ctx, sv.alerter, detail, sv.AlertTo)
	sv.metrics.ObserveAlert(err)

	if err != nil {
		sv.j.Write(&EventAlertFailed{
			ID:    id,
			To:    sv.AlertTo,
			Error: err.Error(),
		})
		return
	}

	sv.j.Write(&EventAlertSent{
		ID: id,
		To: sv.AlertTo,
	})
}
