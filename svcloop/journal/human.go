package journal

import (
	"strings"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/rs/zerolog"
)

// humanWriter renders events as log lines.
type humanWriter struct {
	log zerolog.Logger
}

// HumanWriter creates a journaler that logs every event through the given
// logger. Multi-line details are passed through svcloop.FormatForLogSink.
func HumanWriter(log zerolog.Logger) svcloop.Journaler {
	return humanWriter{log}
}

func (w humanWriter) Write(ev svcloop.Event) error {
	switch ev := ev.(type) {
	case *svcloop.EventWarning:
		w.log.Warn().Str("component", ev.Component).Msg(ev.Error)

	case *svcloop.EventAcquired:
		w.log.Info().
			Str("name", ev.Name).
			Int("pid", ev.PID).
			Str("mode", ev.Mode).
			Msg("started")

	case *svcloop.EventShutdown:
		w.log.Info().Str("component", ev.Component).Msg("shutting down")

	case *svcloop.EventRunRequested:
		w.log.Debug().Str("source", ev.Source).Msg("immediate run requested")

	case *svcloop.EventCycleStarted:
		w.log.Debug().
			Str("id", ev.ID).
			Str("reason", string(ev.Reason)).
			Msg("cycle started")

	case *svcloop.EventCycleCompleted:
		w.log.Info().
			Str("id", ev.ID).
			Dur("duration", ev.Duration).
			Msg("cycle completed")

	case *svcloop.EventCycleFailed:
		w.log.Error().
			Str("id", ev.ID).
			Dur("duration", ev.Duration).
			Msg("cycle failed:\n" + svcloop.FormatForLogSink(ev.Detail, true))

	case *svcloop.EventAlertSent:
		w.log.Info().
			Str("id", ev.ID).
			Str("to", strings.Join(ev.To, ", ")).
			Msg("alert sent")

	case *svcloop.EventAlertFailed:
		w.log.Error().
			Str("id", ev.ID).
			Str("to", strings.Join(ev.To, ", ")).
			Str("error", ev.Error).
			Msg("failed to send alert")

	case *svcloop.EventListening:
		w.log.Info().
			Str("network", ev.Network).
			Str("address", ev.Address).
			Msg("listening")

	case *svcloop.EventConnAccepted:
		w.log.Info().Str("remote", ev.Remote).Msg("client connected")

	case *svcloop.EventConnClosed:
		switch {
		case ev.Early:
			w.log.Warn().Str("remote", ev.Remote).Msg("client disconnected early")
		case ev.Error != "":
			w.log.Error().Str("remote", ev.Remote).Str("error", ev.Error).Msg("connection failed")
		default:
			w.log.Info().Str("remote", ev.Remote).Msg("client disconnected")
		}

	case *svcloop.EventSocketRemoved:
		w.log.Info().
			Str("path", ev.Path).
			Bool("stale", ev.Stale).
			Msg("socket removed")

	default:
		w.log.Info().Msg(ev.Type())
	}

	return nil
}
