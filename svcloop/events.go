package svcloop

import "time"

// eventType describes an event type.
type eventType = string

const (
	eventWarning        eventType = "warning"
	eventAcquired       eventType = "acquired lock"
	eventShutdown       eventType = "shutdown"
	eventRunRequested   eventType = "run requested"
	eventCycleStarted   eventType = "cycle started"
	eventCycleCompleted eventType = "cycle completed"
	eventCycleFailed    eventType = "cycle failed"
	eventAlertSent      eventType = "alert sent"
	eventAlertFailed    eventType = "alert failed"
	eventListening      eventType = "listening"
	eventConnAccepted   eventType = "connection accepted"
	eventConnClosed     eventType = "connection closed"
	eventSocketRemoved  eventType = "socket removed"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used primarily
// for decoding events from its type. Nil is returned if the event type is
// unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventShutdown:
		return &EventShutdown{}
	case eventRunRequested:
		return &EventRunRequested{}
	case eventCycleStarted:
		return &EventCycleStarted{}
	case eventCycleCompleted:
		return &EventCycleCompleted{}
	case eventCycleFailed:
		return &EventCycleFailed{}
	case eventAlertSent:
		return &EventAlertSent{}
	case eventAlertFailed:
		return &EventAlertFailed{}
	case eventListening:
		return &EventListening{}
	case eventConnAccepted:
		return &EventConnAccepted{}
	case eventConnClosed:
		return &EventConnClosed{}
	case eventSocketRemoved:
		return &EventSocketRemoved{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the instance lock is acquired, which is on
// startup.
type EventAcquired struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
	Mode string `json:"mode"`
}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventShutdown is emitted when a component stops because shutdown was
// requested.
type EventShutdown struct {
	Component string `json:"component"`
}

func (ev *EventShutdown) Type() string { return eventShutdown }
func (ev *EventShutdown) event()       {}

// EventRunRequested is emitted when an immediate run is requested.
type EventRunRequested struct {
	Source string `json:"source"` // "signal" or "trigger"
}

func (ev *EventRunRequested) Type() string { return eventRunRequested }
func (ev *EventRunRequested) event()       {}

// EventCycleStarted is emitted right before the work unit is invoked.
type EventCycleStarted struct {
	ID     string `json:"id"`
	Reason Reason `json:"reason"`
}

func (ev *EventCycleStarted) Type() string { return eventCycleStarted }
func (ev *EventCycleStarted) event()       {}

// EventCycleCompleted is emitted when the work unit returns without error.
type EventCycleCompleted struct {
	ID       string        `json:"id"`
	Duration time.Duration `json:"duration"`
}

func (ev *EventCycleCompleted) Type() string { return eventCycleCompleted }
func (ev *EventCycleCompleted) event()       {}

// EventCycleFailed is emitted when the work unit returns an error or panics.
// Detail contains the full multi-line error text, including stack traces when
// available.
type EventCycleFailed struct {
	ID       string        `json:"id"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail"`
}

func (ev *EventCycleFailed) Type() string { return eventCycleFailed }
func (ev *EventCycleFailed) event()       {}

// EventAlertSent is emitted once an alert has been handed to the transport.
type EventAlertSent struct {
	ID string   `json:"id"`
	To []string `json:"to"`
}

func (ev *EventAlertSent) Type() string { return eventAlertSent }
func (ev *EventAlertSent) event()       {}

// EventAlertFailed is emitted when the alert transport fails.
type EventAlertFailed struct {
	ID    string   `json:"id"`
	To    []string `json:"to"`
	Error string   `json:"error"`
}

func (ev *EventAlertFailed) Type() string { return eventAlertFailed }
func (ev *EventAlertFailed) event()       {}

// EventListening is emitted when a connection server starts accepting.
type EventListening struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

func (ev *EventListening) Type() string { return eventListening }
func (ev *EventListening) event()       {}

// EventConnAccepted is emitted for every accepted connection.
type EventConnAccepted struct {
	Remote string `json:"remote"`
}

func (ev *EventConnAccepted) Type() string { return eventConnAccepted }
func (ev *EventConnAccepted) event()       {}

// EventConnClosed is emitted when a connection handler returns.
type EventConnClosed struct {
	Remote string `json:"remote"`
	Early  bool   `json:"early,omitempty"` // peer went away mid-session
	Error  string `json:"error,omitempty"`
}

func (ev *EventConnClosed) Type() string { return eventConnClosed }
func (ev *EventConnClosed) event()       {}

// EventSocketRemoved is emitted when a Unix socket file is deleted, either a
// stale one before listening or ours on exit.
type EventSocketRemoved struct {
	Path  string `json:"path"`
	Stale bool   `json:"stale,omitempty"`
}

func (ev *EventSocketRemoved) Type() string { return eventSocketRemoved }
func (ev *EventSocketRemoved) event()       {}
