package svcloop

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Alerter delivers a failure notification to a list of destinations. How it
// is delivered is up to the implementation. Alert may be called concurrently.
type Alerter interface {
	Alert(ctx context.Context, detail string, to []string) error
}

// AlerterFunc is a function that implements Alerter.
type AlerterFunc func(ctx context.Context, detail string, to []string) error

// Alert calls f.
func (f AlerterFunc) Alert(ctx context.Context, detail string, to []string) error {
	return f(ctx, detail, to)
}

// AlertSubject is the subject of every alert message.
const AlertSubject = "Service Exception Raised"

const alertBodyPrefix = "Our service ran into an issue. This is the traceback:\n\n"

// AlertMessage is the message composed for a failure.
type AlertMessage struct {
	Subject string
	Body    string
	To      []string
}

// NewAlertMessage composes the message sent for the given failure detail.
func NewAlertMessage(detail string, to []string) AlertMessage {
	return AlertMessage{
		Subject: AlertSubject,
		Body:    alertBodyPrefix + detail,
		To:      append([]string(nil), to...),
	}
}

// LogAlerter is a stand-in transport that writes the composed message to a
// logger instead of mailing it.
type LogAlerter struct {
	Log zerolog.Logger
}

var _ Alerter = (*LogAlerter)(nil)

// NewLogAlerter creates a new log alerter.
func NewLogAlerter(log zerolog.Logger) *LogAlerter {
	return &LogAlerter{Log: log}
}

// Alert logs the alert message at the warning level.
func (a *LogAlerter) Alert(ctx context.Context, detail string, to []string) error {
	if len(to) == 0 {
		return errors.New("no alert destinations configured")
	}

	msg := NewAlertMessage(detail, to)

	a.Log.Warn().
		Str("action", "alert").
		Str("to", strings.Join(msg.To, ", ")).
		Str("subject", msg.Subject).
		Msg(FormatForLogSink(msg.Body, true))

	return nil
}

// ErrAlertSuppressed is returned by BreakerAlerter while its breaker is open.
var ErrAlertSuppressed = errors.New("alert suppressed: transport circuit open")

// BreakerAlerter guards an Alerter with a circuit breaker, so a broken
// transport is not hammered on every failing cycle.
type BreakerAlerter struct {
	alerter Alerter
	breaker *gobreaker.CircuitBreaker
}

var _ Alerter = (*BreakerAlerter)(nil)

// BreakerOpts configures a BreakerAlerter.
type BreakerOpts struct {
	// ConsecutiveFailures opens the breaker. Defaults to 3.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open. Defaults to 5 minutes.
	Timeout time.Duration
	// OnStateChange is called when the breaker changes state.
	OnStateChange func(from, to string)
}

// NewBreakerAlerter wraps the given alerter.
func NewBreakerAlerter(name string, a Alerter, opts BreakerOpts) *BreakerAlerter {
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 3
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	settings := gobreaker.Settings{
		Name:        "alert-" + name,
		MaxRequests: 1,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
	}

	if opts.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			opts.OnStateChange(from.String(), to.String())
		}
	}

	return &BreakerAlerter{
		alerter: a,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Alert sends the alert through the wrapped alerter unless the breaker is
// open.
func (a *BreakerAlerter) Alert(ctx context.Context, detail string, to []string) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, a.alerter.Alert(ctx, detail, to)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(ErrAlertSuppressed, err.Error())
	}

	return err
}

// State returns the breaker state as a string.
func (a *BreakerAlerter) State() string {
	return a.breaker.State().String()
}

// safeAlert calls the alerter, turning a panic into an error.
func safeAlert(ctx context.Context, a Alerter, detail string, to []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("alerter panicked: %v", r)
		}
	}()

	return a.Alert(ctx, detail, to)
}
