package svcloop

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// TriggerWatcher requests an immediate run whenever a trigger file is created
// or written to. It is an alternative to RunNowSignal for callers that are not
// allowed to signal the service.
type TriggerWatcher struct {
	w       *fsnotify.Watcher
	j       Journaler
	m       *Metrics
	sched   *Schedule
	path    string
	stopped chan struct{}
}

// TryWatchTrigger attempts to watch the given trigger file asynchronously, but
// it will log into the journaler if, for some reason, it fails to watch it.
func TryWatchTrigger(ctx context.Context, path string, sched *Schedule, j Journaler, m *Metrics) *TriggerWatcher {
	w := newTriggerWatcher(path, sched, j, m)

	go func() {
		if err := w.init(); err != nil {
			j.Write(&EventWarning{
				Component: "watcher",
				Error:     fmt.Sprintf("not watching trigger because: %v", err),
			})
			close(w.stopped)
			return
		}

		w.watch(ctx)
	}()

	return w
}

// NewTriggerWatcher watches the given trigger file. The watcher is stopped
// once the given context is canceled.
func NewTriggerWatcher(ctx context.Context, path string, sched *Schedule, j Journaler, m *Metrics) (*TriggerWatcher, error) {
	w := newTriggerWatcher(path, sched, j, m)
	if err := w.init(); err != nil {
		return nil, err
	}

	go w.watch(ctx)
	return w, nil
}

func newTriggerWatcher(path string, sched *Schedule, j Journaler, m *Metrics) *TriggerWatcher {
	return &TriggerWatcher{
		j:       j,
		m:       m,
		sched:   sched,
		path:    filepath.Clean(path),
		stopped: make(chan struct{}),
	}
}

// Stopped returns a channel that is closed once the watcher has stopped.
func (w *TriggerWatcher) Stopped() <-chan struct{} {
	return w.stopped
}

func (w *TriggerWatcher) init() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Watch the directory, since the trigger file may not exist yet and may be
	// replaced instead of written to.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "failed to watch trigger dir")
	}

	w.w = watcher
	return nil
}

func (w *TriggerWatcher) watch(ctx context.Context) {
	defer close(w.stopped)
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}

			w.j.Write(&EventWarning{
				Component: "watcher",
				Error:     "inotify error: " + err.Error(),
			})

		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}

			if !isTrigger(evt, w.path) {
				continue
			}

			w.sched.RequestRun()
			w.m.ObserveRunRequest("trigger")
			w.j.Write(&EventRunRequested{Source: "trigger"})
		}
	}
}

// isTrigger returns true if the fsnotify event is a create or a write of the
// trigger file.
func isTrigger(evt fsnotify.Event, path string) bool {
	if filepath.Clean(evt.Name) != path {
		return false
	}

	return evt.Op&(fsnotify.Create|fsnotify.Write) != 0
}
