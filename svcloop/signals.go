package svcloop

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// RunNowSignal is the signal that requests an immediate cycle.
var RunNowSignal os.Signal = syscall.SIGUSR1

// SignalBridge turns process signals into shutdown and run requests. SIGINT
// and SIGTERM cancel Context; RunNowSignal calls Schedule.RequestRun.
type SignalBridge struct {
	ctx    context.Context
	cancel context.CancelFunc
	runNow chan os.Signal
	done   chan struct{}

	ignored bool
}

// InstallSignals installs the signal handlers. Stop must be called once the
// caller is done to restore the default behavior. A nil sched installs only
// the termination handlers and ignores RunNowSignal, so a stray run request
// cannot kill a service that has nothing to run.
func InstallSignals(ctx context.Context, sched *Schedule, j Journaler, m *Metrics) *SignalBridge {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	b := &SignalBridge{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if sched == nil {
		signal.Ignore(RunNowSignal)
		b.ignored = true
		close(b.done)
		return b
	}

	// Buffered so a signal arriving while we journal the previous one is not
	// dropped; further ones collapse anyway.
	b.runNow = make(chan os.Signal, 1)
	signal.Notify(b.runNow, RunNowSignal)

	go func() {
		defer close(b.done)

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.runNow:
				sched.RequestRun()
				m.ObserveRunRequest("signal")
				j.Write(&EventRunRequested{Source: "signal"})
			}
		}
	}()

	return b
}

// Context returns a context that is canceled on SIGINT or SIGTERM, or when the
// parent context is done.
func (b *SignalBridge) Context() context.Context {
	return b.ctx
}

// Stop unregisters the handlers and waits for the run request goroutine to
// exit.
func (b *SignalBridge) Stop() {
	if b.runNow != nil {
		signal.Stop(b.runNow)
	}
	if b.ignored {
		signal.Reset(RunNowSignal)
	}
	b.cancel()
	<-b.done
}
