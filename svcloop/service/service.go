// Package service wires the svcloop packages into a running service. Run
// resolves everything that can fail on bad input before it takes the instance
// lock, and takes the lock before it binds a socket or starts a loop, so a
// misconfigured or duplicate service fails without side effects.
package service

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/config"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/instance"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/journal"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/logger"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/server"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Opts contains the process environment given to Run.
type Opts struct {
	// LookupEnv looks up DEBUG. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// Interactive picks Debug mode if DEBUG is not set.
	Interactive bool
	// Log receives the human readable log. Defaults to os.Stderr.
	Log io.Writer
}

// Run runs the service described by cfg until ctx is canceled or a SIGINT or
// SIGTERM arrives, in which case nil is returned. An error matching
// instance.ErrAlreadyRunning is returned if the service is already running.
func Run(ctx context.Context, cfg config.Config, opts Opts) error {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Log == nil {
		opts.Log = os.Stderr
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	// An invalid DEBUG must fail before anything is locked or bound.
	mode, err := config.ParseRunMode(opts.LookupEnv, opts.Interactive)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Name, mode, opts.Log)

	lock, err := acquireLock(cfg)
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			return errors.Wrapf(err, "%s is already running", cfg.Name)
		}
		return errors.Wrap(err, "failed to acquire instance lock")
	}
	defer lock.Close()

	f, err := journal.OpenFile(cfg.Journal)
	if err != nil {
		return errors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	j := journal.MultiWriter(f, journal.HumanWriter(log))

	j.Write(&svcloop.EventAcquired{
		Name: cfg.Name,
		PID:  os.Getpid(),
		Mode: mode.String(),
	})

	var metrics *svcloop.Metrics
	var registry *prometheus.Registry

	if cfg.MetricsAddr != "" {
		metrics = svcloop.NewMetrics("svcloop")
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		if err := metrics.Register(registry); err != nil {
			return err
		}
	}

	// Only the poll mode has a schedule to run early.
	var sched *svcloop.Schedule
	if cfg.Mode == config.ModePoll {
		sched = svcloop.NewSchedule()
	}

	signals := svcloop.InstallSignals(ctx, sched, j, metrics)
	defer signals.Stop()

	g, ctx := errgroup.WithContext(signals.Context())

	switch cfg.Mode {
	case config.ModePoll:
		if cfg.TriggerFile != "" {
			svcloop.TryWatchTrigger(ctx, cfg.TriggerFile, sched, j, metrics)
		}

		alertLog := logger.Component(log, "alert")
		alerter := svcloop.NewBreakerAlerter(cfg.Name, svcloop.NewLogAlerter(alertLog), svcloop.BreakerOpts{
			ConsecutiveFailures: cfg.Breaker.Failures,
			Timeout:             cfg.Breaker.Timeout,
			OnStateChange: func(from, to string) {
				alertLog.Warn().Str("from", from).Str("to", to).Msg("alert breaker changed state")
			},
		})

		sv := svcloop.NewSupervisor(newWork(cfg, log), sched, j, svcloop.SupervisorOpts{
			Interval: mode.Interval(),
			Alerter:  alerter,
			AlertTo:  cfg.AlertTo,
			Metrics:  metrics,
		})

		g.Go(func() error { return sv.Run(ctx) })

	case config.ModeTCP, config.ModeUnix:
		greeter := server.Greeter{
			Message:  cfg.Server.Greeting,
			Count:    cfg.Server.Count,
			Interval: cfg.Server.Interval,
		}

		srv := server.New(cfg.Mode, Address(cfg), greeter, j, server.Opts{
			Sequential: cfg.Server.Sequential,
			Metrics:    metrics,
		})

		g.Go(func() error { return srv.Serve(ctx) })
	}

	if registry != nil {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, registry) })
	}

	return g.Wait()
}

// Address returns the address the connection server of cfg listens on.
func Address(cfg config.Config) string {
	if cfg.Mode == config.ModeUnix {
		return cfg.Server.Socket
	}
	return cfg.Server.TCPAddr
}

func acquireLock(cfg config.Config) (instance.Lock, error) {
	if cfg.LockFile == "" {
		return instance.Acquire(cfg.Name)
	}

	l, err := instance.AcquireFile(cfg.LockFile)
	if err != nil {
		return nil, err
	}

	return l, nil
}

func newWork(cfg config.Config, log zerolog.Logger) svcloop.Work {
	if len(cfg.Command) == 0 {
		return &demoWork{log: logger.Component(log, "work")}
	}

	w := svcloop.NewCommandWork(cfg.Command)
	w.Dir = cfg.Dir
	return w
}

// demoWork counts its runs and fails every third one.
type demoWork struct {
	log  zerolog.Logger
	runs int
}

func (w *demoWork) Run(ctx context.Context) error {
	w.runs++

	if w.runs%3 == 0 {
		return errors.Errorf("demo failure on run %d", w.runs)
	}

	w.log.Info().Int("run", w.runs).Msg("demo work done")
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to serve metrics")
	}

	return nil
}
