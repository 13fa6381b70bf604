package shopify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"opshub/internal/models"

	"github.com/shopspring/decimal"
)

const Source = "shopify"

// Transformer maps Shopify payloads onto the shared tables for one store.
type Transformer struct {
	business string
	currency string
	storeURL string
}

func NewTransformer(business, currency, storeURL string) *Transformer {
	if currency == "" {
		currency = "AUD"
	}
	return &Transformer{business: business, currency: currency, storeURL: strings.TrimRight(storeURL, "/")}
}

// TransformProduct converts a Shopify product to our canonical format
func (t *Transformer) TransformProduct(p *Product, now time.Time) (models.Product, error) {
	primary := PrimaryVariant(p)
	if primary == nil {
		return models.Product{}, fmt.Errorf("no variants found for product %d", p.ID)
	}

	price, err := decimal.NewFromString(primary.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid price for product %d: %w", p.ID, err)
	}

	product := models.Product{
		SyncedRecord:      models.NewSyncedRecord(t.business, Source, strconv.FormatInt(p.ID, 10), now),
		SKU:               primary.Sku,
		Title:             p.Title,
		Brand:             p.Vendor,
		Category:          p.ProductType,
		Price:             price,
		Currency:          t.currency,
		InventoryQuantity: totalInventory(p.Variants),
		Availability:      availability(p.Variants),
		Status:            p.Status,
		GTIN:              ExtractGTIN(p),
	}

	if primary.CompareAtPrice != nil && *primary.CompareAtPrice != "" {
		if compare, err := decimal.NewFromString(*primary.CompareAtPrice); err == nil {
			product.CompareAtPrice = &compare
		}
	}
	if len(p.Images) > 0 {
		product.ImageURL = p.Images[0].Src
	}
	if t.storeURL != "" && p.Handle != "" {
		product.ProductURL = t.storeURL + "/products/" + p.Handle
	}

	tags, _ := json.Marshal(splitTags(p.Tags))
	product.Tags = tags

	return product, nil
}

// TransformOrder converts a Shopify order to our canonical format
func (t *Transformer) TransformOrder(o *Order, now time.Time) (models.Order, error) {
	total, err := decimal.NewFromString(o.TotalPrice)
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid total for order %d: %w", o.ID, err)
	}
	subtotal, _ := decimal.NewFromString(o.SubtotalPrice)

	order := models.Order{
		SyncedRecord:    models.NewSyncedRecord(t.business, Source, strconv.FormatInt(o.ID, 10), now),
		OrderNumber:     o.Name,
		Email:           o.Email,
		FinancialStatus: o.FinancialStatus,
		Subtotal:        subtotal,
		Total:           total,
		Currency:        o.Currency,
		PlacedAt:        o.CreatedAt,
	}
	if order.OrderNumber == "" {
		order.OrderNumber = strconv.Itoa(o.OrderNumber)
	}
	if order.Currency == "" {
		order.Currency = t.currency
	}
	if o.FulfillmentStatus != nil {
		order.FulfillmentStatus = *o.FulfillmentStatus
	} else {
		order.FulfillmentStatus = "unfulfilled"
	}
	if o.ProcessedAt != nil {
		order.PlacedAt = *o.ProcessedAt
	}
	for _, item := range o.LineItems {
		order.LineItemCount += item.Quantity
	}
	return order, nil
}

// PrimaryVariant is the variant at position 1, or the first one.
func PrimaryVariant(p *Product) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Position == 1 {
			return &p.Variants[i]
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0]
	}
	return nil
}

// ExtractGTIN returns the first variant barcode that looks like a GTIN.
func ExtractGTIN(p *Product) string {
	for _, variant := range p.Variants {
		if variant.Barcode == nil {
			continue
		}
		barcode := strings.TrimSpace(*variant.Barcode)
		if len(barcode) < 8 || len(barcode) > 14 {
			continue
		}
		if isNumeric(barcode) {
			return barcode
		}
	}
	return ""
}

func totalInventory(variants []Variant) int {
	total := 0
	for _, v := range variants {
		if v.InventoryQuantity > 0 {
			total += v.InventoryQuantity
		}
	}
	return total
}

func availability(variants []Variant) models.ProductAvailability {
	backorder := false
	for _, v := range variants {
		if v.InventoryManagement == "" || v.InventoryQuantity > 0 {
			return models.AvailabilityInStock
		}
		if v.InventoryPolicy == "continue" {
			backorder = true
		}
	}
	if backorder {
		return models.AvailabilityBackorder
	}
	return models.AvailabilityOutOfStock
}

func splitTags(tags string) []string {
	out := []string{}
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func isNumeric(s string) bool {
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}
