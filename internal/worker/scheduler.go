package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"opshub/internal/jobs"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/worker/processors"

	"gopkg.in/yaml.v3"
)

// Entry is one line of the schedule file.
type Entry struct {
	Job         string        `yaml:"job"`
	Every       time.Duration `yaml:"every"`
	RunOnStart  bool          `yaml:"run_on_start"`
	Integration string        `yaml:"integration"`
}

type scheduleFile struct {
	Jobs []Entry `yaml:"jobs"`
}

// DefaultSchedule is used when no schedule file exists.
func DefaultSchedule() []Entry {
	return []Entry{
		{Job: jobs.KindShopifyProducts, Every: 6 * time.Hour},
		{Job: jobs.KindShopifyOrders, Every: time.Hour},
		{Job: jobs.KindBigCommerceProducts, Every: 6 * time.Hour},
		{Job: jobs.KindBigCommerceOrders, Every: time.Hour},
		{Job: jobs.KindHubSpotContacts, Every: 6 * time.Hour},
		{Job: jobs.KindKlaviyoCampaigns, Every: 24 * time.Hour},
		{Job: jobs.KindSmartLeadCampaigns, Every: 6 * time.Hour},
		{Job: jobs.KindSmartLeadLeads, Every: 24 * time.Hour},
		{Job: jobs.KindLiveChatChats, Every: time.Hour},
		{Job: jobs.KindGmailMessages, Every: time.Hour},
		{Job: jobs.KindMerchantStatuses, Every: 12 * time.Hour},
		{Job: jobs.KindXeroInvoices, Every: 6 * time.Hour},
		{Job: jobs.KindN8NResolve, Every: 24 * time.Hour, RunOnStart: true},
	}
}

// LoadSchedule reads the YAML schedule at path, falling back to
// DefaultSchedule when the file does not exist.
func LoadSchedule(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSchedule(), nil
	}
	if err != nil {
		return nil, err
	}
	return ParseSchedule(data)
}

func ParseSchedule(data []byte) ([]Entry, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	for i, e := range file.Jobs {
		if e.Job == "" {
			return nil, fmt.Errorf("schedule entry %d: job is required", i+1)
		}
		if e.Every < time.Minute {
			return nil, fmt.Errorf("schedule entry %d (%s): every must be at least 1m", i+1, e.Job)
		}
	}
	return file.Jobs, nil
}

// Scheduler runs each entry on its own ticker until the context ends.
type Scheduler struct {
	entries []Entry
	runner  processors.JobRunner
	logger  *logger.Logger
}

func NewScheduler(entries []Entry, runner processors.JobRunner, logger *logger.Logger) *Scheduler {
	return &Scheduler{entries: entries, runner: runner, logger: logger}
}

// Run blocks until ctx is cancelled and every entry has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	s.logger.Info("Scheduler started with %d entries", len(s.entries))
	wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	if e.RunOnStart {
		s.fire(ctx, e)
	}
	ticker := time.NewTicker(e.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, e)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, e Entry) {
	if ctx.Err() != nil {
		return
	}
	log := s.logger.WithField("job", e.Job)
	if e.Integration != "" {
		run, err := s.runner.RunIntegration(ctx, e.Job, e.Integration, models.TriggerSchedule)
		if err != nil {
			log.Error("Scheduled run failed: %v", err)
			return
		}
		log.Info("Scheduled run %s finished %s", run.ID, run.Status)
		return
	}
	runs, err := s.runner.Run(ctx, e.Job, models.TriggerSchedule)
	if err != nil {
		log.Error("Scheduled run failed: %v", err)
		return
	}
	log.Info("Scheduled run finished: %d integrations", len(runs))
}

// CheckKinds fails on the first entry naming a job the registry does not know.
func CheckKinds(entries []Entry, registry *jobs.Registry) error {
	for _, e := range entries {
		if _, err := registry.Get(e.Job); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}
