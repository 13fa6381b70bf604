package worker

import (
	"context"
	"errors"
	"time"

	"opshub/internal/config"
	"opshub/internal/events"
	"opshub/internal/logger"
	"opshub/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the worker uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Worker consumes job.requested events and hands them to the processor.
type Worker struct {
	logger    *logger.Logger
	reader    Reader
	processor *processors.EventProcessor
	backoff   time.Duration
}

func New(cfg *config.Config, processor *processors.EventProcessor, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers(),
		GroupID:        "opshub-worker",
		Topic:          cfg.KafkaJobTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return NewWithReader(reader, processor, logger)
}

func NewWithReader(reader Reader, processor *processors.EventProcessor, logger *logger.Logger) *Worker {
	return &Worker{
		logger:    logger,
		reader:    reader,
		processor: processor,
		backoff:   time.Second,
	}
}

// Start reads until ctx is cancelled. Bad messages and failed jobs are
// logged and skipped so one event cannot stall the topic.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening for events...")

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.Info("Worker stopped")
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		event, err := events.Decode(message.Value)
		if err != nil {
			w.logger.Error("%v", err)
			continue
		}

		if err := w.processor.Process(ctx, event); err != nil {
			w.logger.Error("Failed to process event: %v", err)
			continue
		}

		w.logger.Debug("Event processed successfully")
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Warn("Failed to close reader: %v", err)
	}
}
