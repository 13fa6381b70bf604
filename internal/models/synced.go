package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceRefColumns is the natural key of every synced row and the conflict
// target for upserts.
var SourceRefColumns = []string{"business_code", "source", "external_id"}

// SyncedRecord is embedded by every table a job writes into.
type SyncedRecord struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	BusinessCode string    `json:"business_code" gorm:"not null;index:,unique,composite:source_ref"`
	Source       string    `json:"source" gorm:"not null;index:,unique,composite:source_ref"`
	ExternalID   string    `json:"external_id" gorm:"not null;index:,unique,composite:source_ref"`
	SyncedAt     time.Time `json:"synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *SyncedRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// NewSyncedRecord stamps the natural key and sync time.
func NewSyncedRecord(business, source, externalID string, now time.Time) SyncedRecord {
	return SyncedRecord{
		BusinessCode: business,
		Source:       source,
		ExternalID:   externalID,
		SyncedAt:     now,
	}
}
