package bigcommerce

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Metadata struct {
	Pagination struct {
		Total       int `json:"total"`
		Count       int `json:"count"`
		PerPage     int `json:"per_page"`
		CurrentPage int `json:"current_page"`
		TotalPages  int `json:"total_pages"`
	} `json:"pagination"`
}

type ProductsPage struct {
	Data []Product `json:"data"`
	Meta Metadata  `json:"meta"`
}

// HasMore reports whether another page follows this one.
func (p *ProductsPage) HasMore() bool {
	return p.Meta.Pagination.CurrentPage < p.Meta.Pagination.TotalPages
}

type Product struct {
	ID                int              `json:"id"`
	Name              string           `json:"name"`
	SKU               string           `json:"sku"`
	Price             decimal.Decimal  `json:"price"`
	SalePrice         decimal.Decimal  `json:"sale_price"`
	RetailPrice       decimal.Decimal  `json:"retail_price"`
	CostPrice         decimal.Decimal  `json:"cost_price"`
	InventoryLevel    int              `json:"inventory_level"`
	InventoryTracking string           `json:"inventory_tracking"`
	Availability      string           `json:"availability"`
	BrandID           int              `json:"brand_id"`
	UPC               string           `json:"upc"`
	GTIN              string           `json:"gtin"`
	IsVisible         bool             `json:"is_visible"`
	Categories        []int            `json:"categories"`
	CustomURL         CustomURL        `json:"custom_url"`
	Images            []ProductImage   `json:"images"`
	Variants          []ProductVariant `json:"variants"`
	DateModified      time.Time        `json:"date_modified"`
}

type CustomURL struct {
	URL string `json:"url"`
}

type ProductImage struct {
	IsThumbnail bool   `json:"is_thumbnail"`
	URLStandard string `json:"url_standard"`
}

type ProductVariant struct {
	ID             int    `json:"id"`
	SKU            string `json:"sku"`
	UPC            string `json:"upc"`
	GTIN           string `json:"gtin"`
	InventoryLevel int    `json:"inventory_level"`
}

type Brand struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Order is a v2 order. Money fields arrive as strings.
type Order struct {
	ID             int             `json:"id"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	SubtotalIncTax decimal.Decimal `json:"subtotal_inc_tax"`
	TotalIncTax    decimal.Decimal `json:"total_inc_tax"`
	CurrencyCode   string          `json:"currency_code"`
	ItemsTotal     int             `json:"items_total"`
	DateCreated    string          `json:"date_created"`
	DateModified   string          `json:"date_modified"`
	BillingAddress struct {
		Email string `json:"email"`
	} `json:"billing_address"`
}

// CreatedAt parses the RFC 1123 timestamp the v2 API returns.
func (o *Order) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC1123Z, strings.TrimSpace(o.DateCreated))
	if err != nil {
		return time.Time{}
	}
	return t
}
