package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opshub/internal/config"
	"opshub/internal/events"
	"opshub/internal/httpx"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/resolver"
	"opshub/internal/store"
	"opshub/internal/validation"
)

var ErrUnknownKind = errors.New("unknown job kind")

// Result counts what one job run did.
type Result struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Failed   int `json:"failed"`
}

func (r *Result) Add(other Result) {
	r.Fetched += other.Fetched
	r.Upserted += other.Upserted
	r.Failed += other.Failed
}

// Job is one sync of one integration. Records that fail to transform are
// counted in Failed and skipped; an error means the run stopped early.
type Job interface {
	Run(ctx context.Context, sink store.Sink) (Result, error)
}

// Deps is what factories need beyond the integration itself.
type Deps struct {
	Logger       *logger.Logger
	HTTP         httpx.Options
	Validator    *validation.Validator
	Integrations *store.Integrations
	Issues       *store.Issues
	Publisher    events.Publisher
	Rules        resolver.Rules
	SlackWebhook string
	// Apply lets n8n.resolve change workflows instead of reporting a dry run.
	Apply    bool
	OnReport ReportHook
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) log() *logger.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Discard()
}

// Factory builds a job for one integration.
type Factory func(ctx context.Context, integration *models.Integration, deps Deps) (Job, error)

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context, sink store.Sink) (Result, error)

func (f JobFunc) Run(ctx context.Context, sink store.Sink) (Result, error) {
	return f(ctx, sink)
}

// upsert writes one page of rows and folds the outcome into res.
func upsert(ctx context.Context, sink store.Sink, table string, rows interface{}, res *Result) error {
	n, err := sink.Upsert(ctx, table, models.SourceRefColumns, rows)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	res.Upserted += n
	return nil
}

// since returns where an incremental sync starts: an hour before the last
// successful sync, or lookbackDays ago for the first run.
func since(integration *models.Integration, now time.Time, lookbackDays int) time.Time {
	if integration.LastSyncAt != nil && integration.LastError == "" {
		return integration.LastSyncAt.Add(-time.Hour)
	}
	days := integration.SettingInt("lookback_days", lookbackDays)
	return now.AddDate(0, 0, -days)
}

// setting returns a required config value of the integration.
func setting(integration *models.Integration, key string) (string, error) {
	if v := integration.Setting(key, ""); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: config %s on integration %q", config.ErrMissingCredential, key, integration.Name)
}
