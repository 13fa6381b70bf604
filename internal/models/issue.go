package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issue is a problem the n8n resolver found on a workflow. One open issue
// exists per workflow and code; repeat sightings bump Occurrences.
type Issue struct {
	ID           string        `json:"id" gorm:"type:uuid;primaryKey"`
	WorkflowID   string        `json:"workflow_id" gorm:"not null;index"`
	WorkflowName string        `json:"workflow_name"`
	Code         string        `json:"code" gorm:"not null;index"`
	Severity     IssueSeverity `json:"severity" gorm:"not null"`
	Explanation  string        `json:"explanation" gorm:"not null"`
	SuggestedFix *string       `json:"suggested_fix"`
	AutoFixable  bool          `json:"auto_fixable"`
	ExecutionID  string        `json:"execution_id"`
	Occurrences  int           `json:"occurrences" gorm:"default:1"`
	FirstSeenAt  time.Time     `json:"first_seen_at"`
	LastSeenAt   time.Time     `json:"last_seen_at"`
	IsResolved   bool          `json:"is_resolved" gorm:"default:false;index"`
	ResolvedAt   *time.Time    `json:"resolved_at"`
	Resolution   string        `json:"resolution"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type IssueSeverity string

const (
	IssueSeverityLow      IssueSeverity = "LOW"
	IssueSeverityMedium   IssueSeverity = "MEDIUM"
	IssueSeverityHigh     IssueSeverity = "HIGH"
	IssueSeverityCritical IssueSeverity = "CRITICAL"
)

// Rank orders severities for sorting, higher is worse.
func (s IssueSeverity) Rank() int {
	switch s {
	case IssueSeverityCritical:
		return 4
	case IssueSeverityHigh:
		return 3
	case IssueSeverityMedium:
		return 2
	case IssueSeverityLow:
		return 1
	}
	return 0
}

const (
	ResolutionAutoFixed = "auto-fixed"
	ResolutionCleared   = "cleared"
	ResolutionManual    = "manual"
)

func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
