package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRun records one execution of a job kind against one integration.
type SyncRun struct {
	ID            string        `json:"id" gorm:"type:uuid;primaryKey"`
	JobKind       string        `json:"job_kind" gorm:"not null;index"`
	IntegrationID string        `json:"integration_id" gorm:"index"`
	BusinessCode  string        `json:"business_code" gorm:"index"`
	Trigger       Trigger       `json:"trigger"`
	Status        SyncRunStatus `json:"status" gorm:"not null;index"`
	StartedAt     time.Time     `json:"started_at" gorm:"index"`
	FinishedAt    *time.Time    `json:"finished_at"`
	Fetched       int           `json:"fetched"`
	Upserted      int           `json:"upserted"`
	Failed        int           `json:"failed"`
	Error         string        `json:"error"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "RUNNING"
	SyncRunSucceeded SyncRunStatus = "SUCCEEDED"
	SyncRunPartial   SyncRunStatus = "PARTIAL"
	SyncRunFailed    SyncRunStatus = "FAILED"
)

type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
	TriggerEvent    Trigger = "event"
	TriggerWebhook  Trigger = "webhook"
)

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// Duration is zero while the run is still going.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
