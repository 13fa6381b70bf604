package models

import (
	"fmt"
	"time"

	"opshub/internal/config"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Integration is one business's account with a third-party service, holding
// the credentials a job needs to talk to it.
type Integration struct {
	ID           string            `json:"id" gorm:"type:uuid;primaryKey"`
	BusinessCode string            `json:"business_code" gorm:"not null;index"`
	Provider     Provider          `json:"provider" gorm:"not null;index"`
	Name         string            `json:"name" gorm:"not null"`
	Status       IntegrationStatus `json:"status" gorm:"default:ACTIVE"`
	Config       datatypes.JSONMap `json:"config"`
	Credentials  datatypes.JSONMap `json:"-"`
	LastSyncAt   *time.Time        `json:"last_sync_at"`
	LastError    string            `json:"last_error"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type Provider string

const (
	ProviderShopify     Provider = "shopify"
	ProviderBigCommerce Provider = "bigcommerce"
	ProviderHubSpot     Provider = "hubspot"
	ProviderKlaviyo     Provider = "klaviyo"
	ProviderSmartLead   Provider = "smartlead"
	ProviderLiveChat    Provider = "livechat"
	ProviderGmail       Provider = "gmail"
	ProviderMerchant    Provider = "merchant"
	ProviderXero        Provider = "xero"
	ProviderN8N         Provider = "n8n"
)

type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "ACTIVE"
	IntegrationStatusInactive IntegrationStatus = "INACTIVE"
	IntegrationStatusError    IntegrationStatus = "ERROR"
	IntegrationStatusSyncing  IntegrationStatus = "SYNCING"
)

func (i *Integration) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Credential returns a non-empty string credential or config.ErrMissingCredential.
func (i *Integration) Credential(key string) (string, error) {
	return lookupString(i.Credentials, key, i.Name)
}

// Setting returns a string from the integration config, or def when absent.
func (i *Integration) Setting(key, def string) string {
	if v, err := lookupString(i.Config, key, i.Name); err == nil {
		return v
	}
	return def
}

// SettingInt returns a numeric config value, or def when absent.
func (i *Integration) SettingInt(key string, def int) int {
	switch v := i.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func lookupString(m map[string]interface{}, key, owner string) (string, error) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s on integration %q", config.ErrMissingCredential, key, owner)
	}
	return v, nil
}
