package store

import (
	"context"
	"errors"
	"time"

	"opshub/internal/models"

	"gorm.io/gorm"
)

type SyncRuns struct {
	db *gorm.DB
}

func NewSyncRuns(db *gorm.DB) *SyncRuns {
	return &SyncRuns{db: db}
}

type SyncRunFilter struct {
	JobKind       string
	IntegrationID string
	BusinessCode  string
	Status        models.SyncRunStatus
	Limit         int
	Offset        int
}

// Start inserts a RUNNING row for the integration.
func (r *SyncRuns) Start(ctx context.Context, kind string, integration *models.Integration, trigger models.Trigger, now time.Time) (*models.SyncRun, error) {
	run := &models.SyncRun{
		JobKind:   kind,
		Trigger:   trigger,
		Status:    models.SyncRunRunning,
		StartedAt: now,
	}
	if integration != nil {
		run.IntegrationID = integration.ID
		run.BusinessCode = integration.BusinessCode
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Finish persists the final status, counters and error of a run.
func (r *SyncRuns) Finish(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *SyncRuns) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List returns runs newest first with the total count matching the filter.
func (r *SyncRuns) List(ctx context.Context, f SyncRunFilter) ([]models.SyncRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRun{})
	if f.JobKind != "" {
		query = query.Where("job_kind = ?", f.JobKind)
	}
	if f.IntegrationID != "" {
		query = query.Where("integration_id = ?", f.IntegrationID)
	}
	if f.BusinessCode != "" {
		query = query.Where("business_code = ?", f.BusinessCode)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	var runs []models.SyncRun
	err := query.Order("started_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&runs).Error
	return runs, total, err
}

// Latest returns the most recent run of every kind and integration pair.
func (r *SyncRuns) Latest(ctx context.Context) ([]models.SyncRun, error) {
	var recent []models.SyncRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(1000).Find(&recent).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []models.SyncRun
	for _, run := range recent {
		key := run.JobKind + "|" + run.IntegrationID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, run)
	}
	return out, nil
}
