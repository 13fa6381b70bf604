package shopify

import (
	"time"
)

// Product represents a Shopify product
type Product struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	BodyHTML    string     `json:"body_html"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Handle      string     `json:"handle"`
	Status      string     `json:"status"`
	Tags        string     `json:"tags"`
	Variants    []Variant  `json:"variants"`
	Images      []Image    `json:"images"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// Variant represents a product variant
type Variant struct {
	ID                  int64     `json:"id"`
	ProductID           int64     `json:"product_id"`
	Title               string    `json:"title"`
	Price               string    `json:"price"`
	Sku                 string    `json:"sku"`
	Position            int       `json:"position"`
	InventoryPolicy     string    `json:"inventory_policy"`
	CompareAtPrice      *string   `json:"compare_at_price"`
	InventoryManagement string    `json:"inventory_management"`
	Barcode             *string   `json:"barcode"`
	Grams               int       `json:"grams"`
	InventoryItemID     int64     `json:"inventory_item_id"`
	InventoryQuantity   int       `json:"inventory_quantity"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Image represents a product image
type Image struct {
	ID       int64  `json:"id"`
	Position int    `json:"position"`
	Src      string `json:"src"`
}

// Order represents a Shopify order
type Order struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	OrderNumber       int        `json:"order_number"`
	Email             string     `json:"email"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus *string    `json:"fulfillment_status"`
	Currency          string     `json:"currency"`
	SubtotalPrice     string     `json:"subtotal_price"`
	TotalPrice        string     `json:"total_price"`
	LineItems         []LineItem `json:"line_items"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ProcessedAt       *time.Time `json:"processed_at"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	VariantID *int64 `json:"variant_id"`
	Sku       string `json:"sku"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// Shop represents shop information
type Shop struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Domain          string    `json:"domain"`
	MyshopifyDomain string    `json:"myshopify_domain"`
	Country         string    `json:"country"`
	Currency        string    `json:"currency"`
	IanaTimezone    string    `json:"iana_timezone"`
	PlanName        string    `json:"plan_name"`
	PlanDisplayName string    `json:"plan_display_name"`
	ShopOwner       string    `json:"shop_owner"`
	TaxesIncluded   bool      `json:"taxes_included"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProductsPage is one page of the products endpoint.
type ProductsPage struct {
	Products []Product `json:"products"`
	NextPage string    `json:"-"`
}

// OrdersPage is one page of the orders endpoint.
type OrdersPage struct {
	Orders   []Order `json:"orders"`
	NextPage string  `json:"-"`
}
