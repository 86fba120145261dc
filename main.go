package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/config"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/journal"
	"git.unix.lgbt/diamondburned/svcloop/svcloop/service"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	configFile  string
	serviceName string
	journalFile string
	runMode     string
	command     string
)

func init() {
	serviceName = filepath.Base(os.Args[0])

	flag.StringVar(&configFile, "c", "", "config file path")
	flag.StringVar(&serviceName, "n", serviceName, "service name, also the instance lock key")
	flag.StringVar(&journalFile, "j", "", "journal file path")
	flag.StringVar(&runMode, "m", "", "mode: poll, tcp or unix")
	flag.StringVar(&command, "x", "", "command to run every cycle in poll mode")
	flag.Usage = func() {
		f := func(f string, v ...interface{}) {
			fmt.Fprintf(flag.CommandLine.Output(), f, v...)
		}

		f("Usage:\n")
		f("  %s [-c <config>] [-n <name>] [-j <journal>] [-m poll|tcp|unix] [-x <command>] [|status|client]\n", filepath.Base(os.Args[0]))
		f("\n")
		f("Send SIGUSR1 to run the work unit immediately.\n")
		f("\n")
		f("Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
}

func main() {
	fatal := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var err error
	switch flag.Arg(0) {
	case "":
		err = start()
	case "status":
		err = status()
	case "client":
		err = client()
	default:
		fatal.Fatal().Msgf("unknown subcommand %q", flag.Arg(0))
	}

	if err != nil {
		fatal.Fatal().Msg(err.Error())
	}
}

// loadConfig loads the config file and applies the flags that were given on
// top of it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile, serviceName)
	if err != nil {
		return cfg, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Name = serviceName
		case "j":
			cfg.Journal = journalFile
		case "m":
			cfg.Mode = runMode
		case "x":
			cfg.Command = strings.Fields(command)
		}
	})

	return cfg, errors.Wrap(cfg.Validate(), "invalid flags")
}

func start() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return service.Run(context.Background(), cfg, service.Opts{
		Interactive: svcloop.IsInteractive(),
	})
}

func status() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := journal.ReadStatusFromFile(cfg.Journal)
	if err != nil {
		return errors.Wrap(err, "failed to read journal")
	}

	state := "running"
	if s.Stopped {
		state = "stopped"
	}

	fmt.Printf("%s (pid %d, %s mode) is %s\n", s.Name, s.PID, s.Mode, state)
	fmt.Printf("  started:  %s\n", s.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("  cycles:   %d (%d failed, %d alerts sent)\n", s.Cycles, s.Failures, s.Alerts)

	if s.LastCycle.IsZero() {
		return nil
	}

	result := "ok"
	if s.LastCycleFailed {
		result = "failed"
	}

	fmt.Printf("  last run: %s (%s)\n", s.LastCycle.Local().Format(time.RFC1123), result)

	if s.LastCycleFailed {
		fmt.Println(svcloop.FormatForLogSink(s.LastDetail, true))
	}

	return nil
}

func client() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Mode == config.ModePoll {
		return errors.New("client needs -m tcp or -m unix")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, cfg.Mode, service.Address(cfg))
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	_, err = io.Copy(os.Stdout, conn)
	if err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "failed to read")
	}

	return nil
}
