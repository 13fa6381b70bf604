package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"opshub/internal/models"

	"gorm.io/gorm"
)

type Issues struct {
	db *gorm.DB
}

func NewIssues(db *gorm.DB) *Issues {
	return &Issues{db: db}
}

type IssueFilter struct {
	Open       *bool
	Severity   models.IssueSeverity
	WorkflowID string
	Code       string
	Limit      int
	Offset     int
}

// IssueKey identifies an open issue: at most one per workflow and code.
func IssueKey(workflowID, code string) string {
	return workflowID + "|" + code
}

// Record stores a finding. An open issue with the same workflow and code is
// bumped instead of duplicated; created reports which happened.
func (r *Issues) Record(ctx context.Context, finding models.Issue, now time.Time) (*models.Issue, bool, error) {
	var existing models.Issue
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND code = ? AND is_resolved = ?", finding.WorkflowID, finding.Code, false).
		First(&existing).Error

	switch {
	case err == nil:
		existing.Occurrences++
		existing.LastSeenAt = now
		existing.Severity = finding.Severity
		existing.Explanation = finding.Explanation
		existing.SuggestedFix = finding.SuggestedFix
		existing.AutoFixable = finding.AutoFixable
		if finding.WorkflowName != "" {
			existing.WorkflowName = finding.WorkflowName
		}
		if finding.ExecutionID != "" {
			existing.ExecutionID = finding.ExecutionID
		}
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		issue := finding
		issue.ID = ""
		issue.Occurrences = 1
		issue.FirstSeenAt = now
		issue.LastSeenAt = now
		issue.IsResolved = false
		if err := r.db.WithContext(ctx).Create(&issue).Error; err != nil {
			return nil, false, err
		}
		return &issue, true, nil
	default:
		return nil, false, err
	}
}

// CloseCleared resolves every open issue on the given workflows whose key is
// not in seen. Issues on workflows outside the checked set are left alone.
func (r *Issues) CloseCleared(ctx context.Context, workflowIDs []string, seen map[string]bool, now time.Time) ([]models.Issue, error) {
	if len(workflowIDs) == 0 {
		return nil, nil
	}
	var open []models.Issue
	if err := r.db.WithContext(ctx).
		Where("is_resolved = ? AND workflow_id IN ?", false, workflowIDs).
		Find(&open).Error; err != nil {
		return nil, err
	}

	var closed []models.Issue
	for _, issue := range open {
		if seen[IssueKey(issue.WorkflowID, issue.Code)] {
			continue
		}
		if err := r.resolve(ctx, &issue, models.ResolutionCleared, now); err != nil {
			return closed, err
		}
		closed = append(closed, issue)
	}
	return closed, nil
}

func (r *Issues) Get(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	if err := r.db.WithContext(ctx).First(&issue, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// Resolve marks one issue resolved. Resolving a resolved issue is a no-op.
func (r *Issues) Resolve(ctx context.Context, id, resolution string, now time.Time) (*models.Issue, error) {
	issue, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.IsResolved {
		return issue, nil
	}
	if err := r.resolve(ctx, issue, resolution, now); err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *Issues) resolve(ctx context.Context, issue *models.Issue, resolution string, now time.Time) error {
	issue.IsResolved = true
	issue.ResolvedAt = &now
	issue.Resolution = resolution
	return r.db.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
		"is_resolved": true,
		"resolved_at": now,
		"resolution":  resolution,
	}).Error
}

// List returns issues, worst and most recent first.
func (r *Issues) List(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Issue{})
	if f.Open != nil {
		query = query.Where("is_resolved = ?", !*f.Open)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if f.WorkflowID != "" {
		query = query.Where("workflow_id = ?", f.WorkflowID)
	}
	if f.Code != "" {
		query = query.Where("code = ?", f.Code)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}
	var issues []models.Issue
	err := query.Order("last_seen_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&issues).Error
	if err != nil {
		return nil, 0, err
	}
	sortBySeverity(issues)
	return issues, total, nil
}

func sortBySeverity(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})
}
