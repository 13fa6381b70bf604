package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opshub/internal/api"
	"opshub/internal/app"
	"opshub/internal/config"
	"opshub/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Database, sink, runner and publishers
	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialise: %v", err)
	}
	defer a.Close()

	// Initialize API server
	server := api.New(cfg, logger, api.Deps{
		DB:           a.Database.DB,
		Sink:         a.Sink,
		Integrations: a.Integrations,
		Runs:         a.Runs,
		Issues:       a.Issues,
		Registry:     a.Runner.Registry(),
		Runner:       a.Runner,
		Requests:     a.Requests,
		Exporter:     a.Exporter,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}
}
