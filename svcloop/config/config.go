// Package config loads a service's YAML configuration file and resolves its
// RunMode from the environment.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"git.unix.lgbt/diamondburned/svcloop/svcloop"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Modes are the supported values of Config.Mode.
const (
	ModePoll = "poll"
	ModeTCP  = "tcp"
	ModeUnix = "unix"
)

// Config is the configuration of a single service. Flags override the file.
type Config struct {
	// Name is the service identity used for the instance lock. Defaults to the
	// executable name.
	Name string `yaml:"name"`
	// Journal is the path of the journal file.
	Journal string `yaml:"journal"`
	// Mode is one of poll, tcp or unix.
	Mode string `yaml:"mode"`

	// Command is run every cycle in poll mode. Empty runs the demo work unit.
	Command []string `yaml:"command"`
	// Dir is the working directory of Command.
	Dir string `yaml:"dir"`

	AlertTo []string      `yaml:"alert_to"`
	Breaker BreakerConfig `yaml:"breaker"`

	// TriggerFile requests an immediate run when created or written to.
	TriggerFile string `yaml:"trigger_file"`
	// LockFile switches the instance lock to a flock on this path.
	LockFile string `yaml:"lock_file"`
	// MetricsAddr serves prometheus metrics if not empty.
	MetricsAddr string `yaml:"metrics_addr"`

	Server ServerConfig `yaml:"server"`
}

// BreakerConfig configures the circuit breaker guarding the alert transport.
type BreakerConfig struct {
	Failures uint32        `yaml:"failures"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig configures the connection server of the tcp and unix modes.
type ServerConfig struct {
	TCPAddr    string `yaml:"tcp_addr"`
	Socket     string `yaml:"socket"`
	Sequential bool   `yaml:"sequential"`

	Greeting string        `yaml:"greeting"`
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval"`
}

// DefaultAlertTo is the alert destination used when alert_to is not set.
var DefaultAlertTo = []string{"root@localhost"}

// Default returns the default configuration for the named service.
func Default(name string) Config {
	return Config{
		Name:    name,
		Journal: defaultJournal(name),
		Mode:    ModePoll,
		AlertTo: append([]string(nil), DefaultAlertTo...),
		Breaker: BreakerConfig{
			Failures: 3,
			Timeout:  5 * time.Minute,
		},
		Server: ServerConfig{
			TCPAddr:  "127.0.0.1:8585",
			Socket:   filepath.Join(os.TempDir(), name+".sock"),
			Greeting: "hello",
			Count:    5,
			Interval: time.Second,
		},
	}
}

func defaultJournal(name string) string {
	stateDir, err := os.UserCacheDir()
	if err != nil {
		stateDir = os.TempDir()
	}
	return filepath.Join(stateDir, "svcloop", name+".journal")
}

// Load reads the configuration file at path on top of Default(name). An empty
// path returns the defaults.
func Load(path, name string) (Config, error) {
	cfg := Default(name)

	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()

	if err := cfg.Decode(f); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// Decode decodes YAML on top of the current values. Unknown keys are errors.
func (c *Config) Decode(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	// An empty document leaves every default in place.
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	return dec.Decode(c)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}

	if c.Journal == "" {
		return errors.New("journal is required")
	}

	switch c.Mode {
	case ModePoll:
		// Every failed cycle is alerted about, so there must be somewhere to
		// send the alert to.
		if len(c.AlertTo) == 0 {
			return errors.New("alert_to must not be empty in poll mode")
		}
	case ModeTCP:
		if c.Server.TCPAddr == "" {
			return errors.New("server.tcp_addr is required in tcp mode")
		}
	case ModeUnix:
		if c.Server.Socket == "" {
			return errors.New("server.socket is required in unix mode")
		}
	default:
		return errors.Errorf("unknown mode %q, expected poll, tcp or unix", c.Mode)
	}

	if c.Server.Count < 0 || c.Server.Interval < 0 {
		return errors.New("server.count and server.interval must not be negative")
	}

	return nil
}

// ParseRunMode resolves the RunMode from DEBUG as returned by lookup, usually
// os.LookupEnv.
func ParseRunMode(lookup func(string) (string, bool), interactive bool) (svcloop.RunMode, error) {
	v, ok := lookup("DEBUG")
	return svcloop.ParseDebug(v, ok, interactive)
}
