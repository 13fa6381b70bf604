package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	SyncedRecord
	OrderNumber       string          `json:"order_number" gorm:"index"`
	Email             string          `json:"email"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	Subtotal          decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2)"`
	Total             decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`
	Currency          string          `json:"currency"`
	LineItemCount     int             `json:"line_item_count"`
	PlacedAt          time.Time       `json:"placed_at" gorm:"index"`
}
