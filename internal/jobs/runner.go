package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opshub/internal/events"
	"opshub/internal/lock"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/store"

	"github.com/sirupsen/logrus"
)

const defaultLockTTL = 30 * time.Minute

// Runner executes job kinds against integrations and records every run.
type Runner struct {
	registry     *Registry
	integrations *store.Integrations
	runs         *store.SyncRuns
	sink         store.Sink
	locker       lock.Locker
	publisher    events.Publisher
	deps         Deps
	logger       *logger.Logger
	lockTTL      time.Duration
}

func NewRunner(registry *Registry, integrations *store.Integrations, runs *store.SyncRuns, sink store.Sink, locker lock.Locker, deps Deps) *Runner {
	if locker == nil {
		locker = lock.NewLocal()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if deps.Integrations == nil {
		deps.Integrations = integrations
	}
	return &Runner{
		registry:     registry,
		integrations: integrations,
		runs:         runs,
		sink:         sink,
		locker:       locker,
		publisher:    publisher,
		deps:         deps,
		logger:       deps.log(),
		lockTTL:      defaultLockTTL,
	}
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes kind for every integration of its provider, one at a time.
// Integrations whose lock is held elsewhere are skipped. Failures of single
// integrations are joined into the returned error.
func (r *Runner) Run(ctx context.Context, kind string, trigger models.Trigger) ([]*models.SyncRun, error) {
	def, err := r.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	integrations, err := r.integrations.ListActive(ctx, def.Provider)
	if err != nil {
		return nil, fmt.Errorf("list %s integrations: %w", def.Provider, err)
	}
	if len(integrations) == 0 {
		r.logger.Info("No active %s integrations for %s", def.Provider, kind)
		return nil, nil
	}

	var runs []*models.SyncRun
	var errs []error
	for i := range integrations {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		run, err := r.runOne(ctx, def, &integrations[i], trigger)
		if errors.Is(err, lock.ErrLocked) {
			r.logger.Warn("Skipping %s for %s: already running", kind, integrations[i].Name)
			continue
		}
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", integrations[i].Name, err))
		}
	}
	return runs, errors.Join(errs...)
}

// RunIntegration executes kind for one integration.
func (r *Runner) RunIntegration(ctx context.Context, kind, integrationID string, trigger models.Trigger) (*models.SyncRun, error) {
	def, err := r.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	integration, err := r.integrations.Get(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integration.Provider != def.Provider {
		return nil, fmt.Errorf("job %s needs a %s integration, %s is %s", kind, def.Provider, integration.Name, integration.Provider)
	}
	return r.runOne(ctx, def, integration, trigger)
}

func (r *Runner) runOne(ctx context.Context, def Definition, integration *models.Integration, trigger models.Trigger) (*models.SyncRun, error) {
	release, err := r.locker.Acquire(ctx, "job:"+def.Kind+":"+integration.ID, r.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	log := r.logger.WithFields(logrus.Fields{
		"job":         def.Kind,
		"integration": integration.Name,
		"business":    integration.BusinessCode,
	})

	run, err := r.runs.Start(ctx, def.Kind, integration, trigger, r.deps.now())
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	if err := r.integrations.MarkSyncing(ctx, integration.ID); err != nil {
		log.Warn("Failed to mark integration syncing: %v", err)
	}
	log.Info("Starting %s run %s", trigger, run.ID)

	result, runErr := r.execute(ctx, def, integration, log)

	finished := r.deps.now()
	run.FinishedAt = &finished
	run.Fetched = result.Fetched
	run.Upserted = result.Upserted
	run.Failed = result.Failed
	run.Status = status(result, runErr)
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// A cancelled ctx must not keep the run RUNNING forever.
	saveCtx := context.WithoutCancel(ctx)
	if err := r.runs.Finish(saveCtx, run); err != nil {
		log.Error("Failed to finish run %s: %v", run.ID, err)
	}
	if err := r.integrations.RecordSync(saveCtx, integration.ID, finished, runErr); err != nil {
		log.Error("Failed to record sync: %v", err)
	}

	event := events.Event{
		Type:      events.TypeJobCompleted,
		JobKind:   def.Kind,
		TargetID:  integration.ID,
		Timestamp: finished,
		Data: map[string]interface{}{
			"run_id":   run.ID,
			"status":   string(run.Status),
			"fetched":  run.Fetched,
			"upserted": run.Upserted,
			"failed":   run.Failed,
		},
	}
	if err := r.publisher.Publish(saveCtx, integration.ID, event); err != nil {
		log.Warn("Failed to publish %s: %v", event, err)
	}

	if runErr != nil {
		log.Error("Run %s %s after %d upserts: %v", run.ID, run.Status, run.Upserted, runErr)
		return run, runErr
	}
	log.Info("Run %s %s: fetched=%d upserted=%d failed=%d", run.ID, run.Status, run.Fetched, run.Upserted, run.Failed)
	return run, nil
}

func (r *Runner) execute(ctx context.Context, def Definition, integration *models.Integration, log *logger.Logger) (Result, error) {
	deps := r.deps
	deps.Logger = log
	job, err := def.Factory(ctx, integration, deps)
	if err != nil {
		return Result{}, err
	}
	return job.Run(ctx, r.sink)
}

func status(result Result, err error) models.SyncRunStatus {
	switch {
	case err != nil && result.Upserted > 0:
		return models.SyncRunPartial
	case err != nil:
		return models.SyncRunFailed
	case result.Failed > 0:
		return models.SyncRunPartial
	default:
		return models.SyncRunSucceeded
	}
}
