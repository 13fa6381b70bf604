package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	SyncedRecord
	SKU               string              `json:"sku" gorm:"index"`
	Title             string              `json:"title" gorm:"not null"`
	Brand             string              `json:"brand"`
	Category          string              `json:"category"`
	Price             decimal.Decimal     `json:"price" gorm:"type:decimal(12,2)"`
	CompareAtPrice    *decimal.Decimal    `json:"compare_at_price" gorm:"type:decimal(12,2)"`
	CostPrice         *decimal.Decimal    `json:"cost_price" gorm:"type:decimal(12,2)"`
	Currency          string              `json:"currency" gorm:"default:AUD"`
	InventoryQuantity int                 `json:"inventory_quantity"`
	Availability      ProductAvailability `json:"availability" gorm:"default:IN_STOCK"`
	Status            string              `json:"status"`
	GTIN              string              `json:"gtin"`
	ImageURL          string              `json:"image_url"`
	ProductURL        string              `json:"product_url"`
	Tags              datatypes.JSON      `json:"tags"`
	FeedReady         bool                `json:"feed_ready"`
	FeedProblems      datatypes.JSON      `json:"feed_problems"`
}

type ProductAvailability string

const (
	AvailabilityInStock    ProductAvailability = "IN_STOCK"
	AvailabilityOutOfStock ProductAvailability = "OUT_OF_STOCK"
	AvailabilityPreorder   ProductAvailability = "PREORDER"
	AvailabilityBackorder  ProductAvailability = "BACKORDER"
)

// Margin returns (price - cost) / price, or false when either side is unknown.
func (p *Product) Margin() (decimal.Decimal, bool) {
	if p.CostPrice == nil || !p.Price.IsPositive() {
		return decimal.Zero, false
	}
	return p.Price.Sub(*p.CostPrice).Div(p.Price), true
}
