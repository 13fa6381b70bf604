package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MerchantProductStatus is the Google Merchant Center view of one offer.
type MerchantProductStatus struct {
	SyncedRecord
	OfferID         string         `json:"offer_id" gorm:"index"`
	Title           string         `json:"title"`
	Approved        string         `json:"approved"`
	Disapproved     string         `json:"disapproved"`
	IsDisapproved   bool           `json:"is_disapproved" gorm:"index"`
	IssueCount      int            `json:"issue_count"`
	Issues          datatypes.JSON `json:"issues"`
	LastCheckedAt   time.Time      `json:"last_checked_at"`
	GoogleExpiresAt *time.Time     `json:"google_expires_at"`
}

// Invoice is a Xero sales or purchase invoice.
type Invoice struct {
	SyncedRecord
	Number      string          `json:"number" gorm:"index"`
	Type        string          `json:"type"`
	ContactName string          `json:"contact_name"`
	Status      string          `json:"status" gorm:"index"`
	Total       decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`
	AmountDue   decimal.Decimal `json:"amount_due" gorm:"type:decimal(12,2)"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	DueDate     *time.Time      `json:"due_date"`
}

// Overdue reports whether money is still owed after the due date.
func (i *Invoice) Overdue(now time.Time) bool {
	return i.DueDate != nil && i.AmountDue.IsPositive() && now.After(*i.DueDate) && i.Status == "AUTHORISED"
}
