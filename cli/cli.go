package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xraph/taskq/config"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/middleware"
)

// Option configures the command tree.
type Option func(*app)

// WithRouter sets the dispatcher for regular jobs.
func WithRouter(d job.Dispatcher) Option {
	return func(a *app) { a.router = d }
}

// WithTasks sets the codec for callable jobs.
func WithTasks(tc job.TaskCodec) Option {
	return func(a *app) { a.tasks = tc }
}

// WithExtension registers a queue lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(a *app) { a.extensions = append(a.extensions, e) }
}

// WithMiddleware appends job middleware after the built-in chain.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(a *app) { a.mws = append(a.mws, m...) }
}

// WithOutput redirects command output and logs.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *app) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithLookupEnv replaces os.LookupEnv for TASKQ_* variables.
func WithLookupEnv(lookup config.LookupFunc) Option {
	return func(a *app) { a.lookupEnv = lookup }
}

// WithExecutable sets the binary that listen spawns for workers. The
// default is os.Executable.
func WithExecutable(path string) Option {
	return func(a *app) { a.executable = path }
}

type app struct {
	router     job.Dispatcher
	tasks      job.TaskCodec
	extensions []ext.Extension
	mws        []middleware.Middleware
	stdout     io.Writer
	stderr     io.Writer
	lookupEnv  config.LookupFunc
	executable string

	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

// New returns the root command.
func New(opts ...Option) *cobra.Command {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           "taskq",
		Short:         "Job queue worker and tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (.json, .yaml or .yml); env TASKQ_CONFIG")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	flags.String("log-format", "", "log format: text|json")
	flags.String("driver", "", "backend driver: memory|sql|postgres|redis|mongo|sqs")
	flags.String("dsn", "", "backend connection string")
	flags.String("serializer", "", "payload serializer: json|msgpack")

	root.AddCommand(
		a.listenCommand(),
		a.workCommand(),
		a.postCommand(),
		a.runTaskCommand(),
		a.peekCommand(),
		a.sizeCommand(),
		a.purgeCommand(),
		a.serveCommand(),
		a.scheduleCommand(),
	)
	return root
}

// load layers defaults, the config file, TASKQ_* variables and flags, then
// builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	lookup := a.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if a.configPath == "" {
		a.configPath, _ = lookup(config.EnvPrefix + "CONFIG")
	}
	if a.configPath != "" {
		abs, err := filepath.Abs(a.configPath)
		if err != nil {
			return fmt.Errorf("taskq: config path: %w", err)
		}
		a.configPath = abs
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := config.FromEnv(&cfg, lookup); err != nil {
		return err
	}

	flags := cmd.Flags()
	overlay := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	overlay("log-level", &cfg.LogLevel)
	overlay("log-format", &cfg.LogFormat)
	overlay("driver", &cfg.Store.Driver)
	overlay("dsn", &cfg.Store.DSN)
	overlay("serializer", &cfg.Serializer)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
