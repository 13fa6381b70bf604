package app

import (
	"errors"

	"opshub/internal/config"
	"opshub/internal/database"
	"opshub/internal/events"
	"opshub/internal/httpx"
	"opshub/internal/jobs"
	"opshub/internal/lock"
	"opshub/internal/logger"
	"opshub/internal/reports"
	"opshub/internal/resolver"
	"opshub/internal/store"
	"opshub/internal/validation"
)

// App holds the shared pieces every binary wires together.
type App struct {
	Config       *config.Config
	Logger       *logger.Logger
	Database     *database.Database
	Sink         store.Sink
	Integrations *store.Integrations
	Runs         *store.SyncRuns
	Issues       *store.Issues
	Locker       lock.Locker
	Events       events.Publisher
	Requests     events.Publisher
	Runner       *jobs.Runner
	Exporter     *reports.Exporter
	Rules        resolver.Rules
	closers      []func() error
}

// Options tweak what New builds.
type Options struct {
	// Apply lets n8n.resolve runs change workflows.
	Apply    bool
	OnReport jobs.ReportHook
}

func New(cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: log, Database: db}
	a.closers = append(a.closers, db.Close)

	sink, err := store.NewSink(cfg, db.DB)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sink = sink

	locker, err := lock.New(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Locker = locker
	if c, ok := locker.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Events, a.Requests = events.NopPublisher{}, events.NopPublisher{}
	if cfg.KafkaEnabled() {
		a.Events = events.NewKafkaPublisher(cfg.Brokers(), cfg.KafkaEventTopic)
		a.Requests = events.NewKafkaPublisher(cfg.Brokers(), cfg.KafkaJobTopic)
		a.closers = append(a.closers, a.Events.Close, a.Requests.Close)
	}

	rules, err := resolver.LoadRules(cfg.ResolverRulesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Rules = rules

	a.Integrations = store.NewIntegrations(db.DB)
	a.Runs = store.NewSyncRuns(db.DB)
	a.Issues = store.NewIssues(db.DB)
	a.Runner = jobs.NewRunner(jobs.DefaultRegistry(), a.Integrations, a.Runs, sink, locker, jobs.Deps{
		Logger:       log,
		HTTP:         httpx.OptionsFromConfig(cfg, log),
		Validator:    validation.New(log),
		Integrations: a.Integrations,
		Issues:       a.Issues,
		Publisher:    a.Events,
		Rules:        rules,
		SlackWebhook: cfg.SlackWebhookURL,
		Apply:        opts.Apply,
		OnReport:     opts.OnReport,
	})
	a.Exporter = reports.New(db.DB, log)
	return a, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
