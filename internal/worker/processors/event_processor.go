package processors

import (
	"context"
	"errors"
	"fmt"

	"opshub/internal/events"
	"opshub/internal/logger"
	"opshub/internal/models"
)

var ErrMissingJobKind = errors.New("job.requested event without job_kind")

// JobRunner is the part of jobs.Runner the processor drives.
type JobRunner interface {
	Run(ctx context.Context, kind string, trigger models.Trigger) ([]*models.SyncRun, error)
	RunIntegration(ctx context.Context, kind, integrationID string, trigger models.Trigger) (*models.SyncRun, error)
}

type EventProcessor struct {
	runner JobRunner
	logger *logger.Logger
}

func NewEventProcessor(runner JobRunner, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{runner: runner, logger: logger}
}

// Process handles one event off the job topic. Only job.requested does any
// work; everything else is logged and dropped.
func (ep *EventProcessor) Process(ctx context.Context, event events.Event) error {
	if event.Type != events.TypeJobRequested {
		ep.logger.Debug("Ignoring %s event", event)
		return nil
	}
	if event.JobKind == "" {
		return ErrMissingJobKind
	}

	trigger := models.TriggerEvent
	if t, ok := event.Data["trigger"].(string); ok && t != "" {
		trigger = models.Trigger(t)
	}

	if event.TargetID != "" {
		run, err := ep.runner.RunIntegration(ctx, event.JobKind, event.TargetID, trigger)
		if err != nil {
			return fmt.Errorf("%s for %s: %w", event.JobKind, event.TargetID, err)
		}
		ep.logger.Info("Processed %s: run %s %s", event, run.ID, run.Status)
		return nil
	}

	runs, err := ep.runner.Run(ctx, event.JobKind, trigger)
	if err != nil {
		return fmt.Errorf("%s: %w", event.JobKind, err)
	}
	ep.logger.Info("Processed %s: %d runs", event, len(runs))
	return nil
}
