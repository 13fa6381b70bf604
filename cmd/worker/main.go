package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"opshub/internal/app"
	"opshub/internal/config"
	"opshub/internal/logger"
	"opshub/internal/worker"
	"opshub/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg, logger, app.Options{Apply: cfg.ResolverApply})
	if err != nil {
		logger.Fatal("Failed to initialise: %v", err)
	}
	defer a.Close()

	schedule, err := worker.LoadSchedule(cfg.ScheduleFile)
	if err != nil {
		logger.Fatal("Failed to load schedule: %v", err)
	}
	if err := worker.CheckKinds(schedule, a.Runner.Registry()); err != nil {
		logger.Fatal("Invalid schedule: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewScheduler(schedule, a.Runner, logger).Run(ctx)
	}()

	// Job requests from the API arrive over Kafka
	if cfg.KafkaEnabled() {
		w := worker.New(cfg, processors.NewEventProcessor(a.Runner, logger), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
		defer w.Stop()
	} else {
		logger.Info("KAFKA_BROKERS not set, running the schedule only")
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	wg.Wait()
}
