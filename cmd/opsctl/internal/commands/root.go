package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"opshub/internal/app"
	"opshub/internal/config"
	"opshub/internal/logger"

	"github.com/spf13/cobra"
)

// Env lazily loads configuration and the shared app for subcommands.
type Env struct {
	LogLevel string
	cfg      *config.Config
	log      *logger.Logger
	app      *app.App
}

func (e *Env) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

func (e *Env) Logger() *logger.Logger {
	if e.log == nil {
		level, format := e.LogLevel, "text"
		if e.cfg != nil {
			format = e.cfg.LogFormat
			if level == "" {
				level = e.cfg.LogLevel
			}
		}
		e.log = logger.NewWriter(level, format, os.Stderr)
	}
	return e.log
}

// App builds the database, sink and runner once per invocation.
func (e *Env) App(opts app.Options) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, e.Logger(), opts)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *Env) Close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			e.Logger().Warn("Close: %v", err)
		}
		e.app = nil
	}
}

func NewRootCommand() *cobra.Command {
	env := &Env{}
	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operations tooling for the business sync jobs and n8n workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			env.Close()
		},
	}
	root.PersistentFlags().StringVar(&env.LogLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCommand(env),
		newIntegrationsCommand(env),
		newJobsCommand(env),
		newN8NCommand(env),
		newReportCommand(env),
		newInspectCommand(env),
	)
	return root
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
