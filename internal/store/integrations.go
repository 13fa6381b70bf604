package store

import (
	"context"
	"errors"
	"time"

	"opshub/internal/models"

	"gorm.io/gorm"
)

type Integrations struct {
	db *gorm.DB
}

func NewIntegrations(db *gorm.DB) *Integrations {
	return &Integrations{db: db}
}

// ListActive returns the integrations of a provider that jobs should run
// for. ERROR integrations stay in rotation so they can recover, and a
// SYNCING row left by a crashed run is picked up again.
func (r *Integrations) ListActive(ctx context.Context, provider models.Provider) ([]models.Integration, error) {
	var out []models.Integration
	err := r.db.WithContext(ctx).
		Where("provider = ? AND status <> ?", provider, models.IntegrationStatusInactive).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// List returns every integration, optionally for one business.
func (r *Integrations) List(ctx context.Context, business string) ([]models.Integration, error) {
	query := r.db.WithContext(ctx).Order("business_code ASC, provider ASC")
	if business != "" {
		query = query.Where("business_code = ?", business)
	}
	var out []models.Integration
	err := query.Find(&out).Error
	return out, err
}

func (r *Integrations) Get(ctx context.Context, id string) (*models.Integration, error) {
	var integration models.Integration
	if err := r.db.WithContext(ctx).First(&integration, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &integration, nil
}

func (r *Integrations) Create(ctx context.Context, integration *models.Integration) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

func (r *Integrations) Update(ctx context.Context, integration *models.Integration) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

func (r *Integrations) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Integration{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Integrations) MarkSyncing(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Integration{}).
		Where("id = ?", id).
		Update("status", models.IntegrationStatusSyncing).Error
}

// RecordSync stores the outcome of a run. A nil runErr clears last_error.
func (r *Integrations) RecordSync(ctx context.Context, id string, at time.Time, runErr error) error {
	updates := map[string]interface{}{
		"last_sync_at": at,
		"status":       models.IntegrationStatusActive,
		"last_error":   "",
	}
	if runErr != nil {
		updates["status"] = models.IntegrationStatusError
		updates["last_error"] = runErr.Error()
	}
	return r.db.WithContext(ctx).Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetCredential stores one credential, e.g. a rotated OAuth refresh token.
func (r *Integrations) SetCredential(ctx context.Context, id, key, value string) error {
	integration, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if integration.Credentials == nil {
		integration.Credentials = map[string]interface{}{}
	}
	integration.Credentials[key] = value
	return r.db.WithContext(ctx).Model(&models.Integration{}).
		Where("id = ?", id).
		Update("credentials", integration.Credentials).Error
}
