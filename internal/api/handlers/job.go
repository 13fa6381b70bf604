package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"opshub/internal/events"
	"opshub/internal/jobs"
	"opshub/internal/logger"
	"opshub/internal/models"

	"github.com/gin-gonic/gin"
)

// Runner is the part of jobs.Runner the dispatcher needs.
type Runner interface {
	Run(ctx context.Context, kind string, trigger models.Trigger) ([]*models.SyncRun, error)
	RunIntegration(ctx context.Context, kind, integrationID string, trigger models.Trigger) (*models.SyncRun, error)
}

const (
	DispatchQueued  = "queued"
	DispatchStarted = "started"
)

// Dispatcher hands API-triggered jobs to the worker through Kafka, or runs
// them in the background when no broker is configured.
type Dispatcher struct {
	registry  *jobs.Registry
	runner    Runner
	publisher events.Publisher
	queue     bool
	logger    *logger.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(registry *jobs.Registry, runner Runner, publisher events.Publisher, queue bool, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, runner: runner, publisher: publisher, queue: queue, logger: logger}
}

// Dispatch validates kind and starts or queues it. An empty integrationID
// means every active integration of the kind's provider.
func (d *Dispatcher) Dispatch(ctx context.Context, kind, integrationID string) (string, error) {
	if _, err := d.registry.Get(kind); err != nil {
		return "", err
	}

	if d.queue {
		event := events.Event{
			Type:     events.TypeJobRequested,
			JobKind:  kind,
			TargetID: integrationID,
			Data:     map[string]interface{}{"trigger": string(models.TriggerAPI)},
		}
		if err := d.publisher.Publish(ctx, kind, event); err != nil {
			return "", err
		}
		return DispatchQueued, nil
	}

	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		var err error
		if integrationID != "" {
			_, err = d.runner.RunIntegration(bg, kind, integrationID, models.TriggerAPI)
		} else {
			_, err = d.runner.Run(bg, kind, models.TriggerAPI)
		}
		if err != nil {
			d.logger.Error("Background %s failed: %v", kind, err)
		}
	}()
	return DispatchStarted, nil
}

// Wait blocks until every background run has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type JobHandler struct {
	registry   *jobs.Registry
	dispatcher *Dispatcher
}

func NewJobHandler(registry *jobs.Registry, dispatcher *Dispatcher) *JobHandler {
	return &JobHandler{registry: registry, dispatcher: dispatcher}
}

func (h *JobHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.registry.List()})
}

func (h *JobHandler) Run(c *gin.Context) {
	kind := c.Param("kind")
	mode, err := h.dispatcher.Dispatch(c.Request.Context(), kind, c.Query("integration"))
	if errors.Is(err, jobs.ErrUnknownKind) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"kind": kind, "status": mode})
}
