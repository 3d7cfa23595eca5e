package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/cron"
	"github.com/xraph/taskq/store"
)

// Config is the top-level configuration of the taskq binary.
type Config struct {
	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel" yaml:"logLevel"`

	// LogFormat is text or json.
	LogFormat string `json:"logFormat" yaml:"logFormat"`

	// Serializer names the envelope codec: json or msgpack.
	Serializer string `json:"serializer" yaml:"serializer"`

	// ReleaseOnFailure puts failed jobs back into the queue.
	ReleaseOnFailure bool `json:"releaseOnFailure" yaml:"releaseOnFailure"`

	// Audit writes an audit record for every job and worker process
	// lifecycle event to the log.
	Audit bool `json:"audit,omitempty" yaml:"audit,omitempty"`

	// JobTimeout bounds a single job execution inside a worker. Zero
	// disables it.
	JobTimeout Duration `json:"jobTimeout,omitempty" yaml:"jobTimeout,omitempty"`

	// Store is the backend tree.
	Store store.Config `json:"store" yaml:"store"`

	// Runner configures the worker supervisor.
	Runner Runner `json:"runner" yaml:"runner"`

	// HTTP configures the HTTP API.
	HTTP HTTP `json:"http" yaml:"http"`

	// Events configures lifecycle event publishing.
	Events Events `json:"events,omitempty" yaml:"events,omitempty"`

	// Cron lists recurring jobs for the schedule command.
	Cron []cron.Entry `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Runner holds worker supervisor settings.
type Runner struct {
	// MaxProcesses caps concurrent worker processes. One runs workers
	// sequentially in the foreground.
	MaxProcesses int `json:"maxProcesses" yaml:"maxProcesses"`

	// IdleBackoff is the wait strategy while the queue is empty, in the
	// form accepted by backoff.Parse.
	IdleBackoff string `json:"idleBackoff" yaml:"idleBackoff"`

	// SlotWait is the wait when all process slots are taken.
	SlotWait Duration `json:"slotWait" yaml:"slotWait"`

	// SpawnSleep is an extra pause after every loop iteration.
	SpawnSleep Duration `json:"spawnSleep,omitempty" yaml:"spawnSleep,omitempty"`

	// SpawnRate limits process starts per second. Zero disables it.
	SpawnRate  float64 `json:"spawnRate,omitempty" yaml:"spawnRate,omitempty"`
	SpawnBurst int     `json:"spawnBurst,omitempty" yaml:"spawnBurst,omitempty"`

	// Timeout kills a worker that runs longer. Zero disables it.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// IdleTimeout kills a worker that writes no output for this long.
	IdleTimeout Duration `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`

	// PropagateSignal forwards the shutdown signal to live workers.
	PropagateSignal bool `json:"propagateSignal" yaml:"propagateSignal"`

	// DrainInterval is the poll interval while waiting for workers to
	// exit on shutdown.
	DrainInterval Duration `json:"drainInterval" yaml:"drainInterval"`

	// Dir is the worker working directory. Empty inherits ours.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Env is appended to the inherited worker environment.
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// HTTP holds HTTP API settings.
type HTTP struct {
	// Addr is the listen address. Empty disables the API in listen.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// Events holds lifecycle event publishing settings.
type Events struct {
	// Redis is a redis:// URL. Empty disables publishing.
	Redis string `json:"redis,omitempty" yaml:"redis,omitempty"`

	// Channel is the pub/sub channel. Empty uses the default.
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// Default returns built-in defaults: an in-memory backend, one sequential
// worker, JSON payloads and release-on-failure.
func Default() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Serializer:       codec.NameJSON,
		ReleaseOnFailure: true,
		Store:            store.Config{Driver: store.DriverMemory},
		Runner: Runner{
			MaxProcesses:    1,
			IdleBackoff:     backoff.DefaultIdleWait.String(),
			SlotWait:        Duration(time.Second),
			PropagateSignal: true,
			DrainInterval:   Duration(time.Second),
		},
		HTTP: HTTP{
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads configuration from a JSON or YAML file, chosen by extension,
// on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("taskq/config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("taskq/config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every configuration error at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{taskq.ErrInvalidConfig}, args...)...))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		invalid("log level: %v", err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		invalid("log format %q, want text or json", c.LogFormat)
	}
	if _, err := codec.Get(c.Serializer); err != nil {
		invalid("serializer: %v", err)
	}
	if c.JobTimeout < 0 {
		invalid("job timeout must not be negative")
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Runner.MaxProcesses < 1 {
		invalid("runner max processes must be at least 1, got %d", c.Runner.MaxProcesses)
	}
	if c.Runner.IdleBackoff != "" {
		if _, err := backoff.Parse(c.Runner.IdleBackoff); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Runner.SpawnRate < 0 {
		invalid("runner spawn rate must not be negative")
	}

	names := make(map[string]bool, len(c.Cron))
	for i, e := range c.Cron {
		if e.Name == "" {
			invalid("cron entry %d has no name", i)
		} else if names[e.Name] {
			invalid("duplicate cron entry %q", e.Name)
		}
		names[e.Name] = true
		if e.Route == "" {
			invalid("cron entry %q has no route", e.Name)
		}
		if _, err := cron.ParseSchedule(e.Schedule); err != nil {
			invalid("cron entry %q: %v", e.Name, err)
		}
	}

	return errors.Join(errs...)
}
