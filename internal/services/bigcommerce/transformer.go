package bigcommerce

import (
	"strconv"
	"strings"
	"time"

	"opshub/internal/models"
)

const Source = "bigcommerce"

type Transformer struct {
	business string
	currency string
	storeURL string
	brands   map[int]string
}

func NewTransformer(business, currency, storeURL string, brands map[int]string) *Transformer {
	if currency == "" {
		currency = "AUD"
	}
	return &Transformer{business: business, currency: currency, storeURL: strings.TrimRight(storeURL, "/"), brands: brands}
}

func (t *Transformer) TransformProduct(p *Product, now time.Time) models.Product {
	product := models.Product{
		SyncedRecord:      models.NewSyncedRecord(t.business, Source, strconv.Itoa(p.ID), now),
		SKU:               p.SKU,
		Title:             p.Name,
		Brand:             t.brands[p.BrandID],
		Price:             p.Price,
		Currency:          t.currency,
		InventoryQuantity: p.InventoryLevel,
		Availability:      availability(p),
		Status:            "draft",
		GTIN:              firstNonEmpty(p.GTIN, p.UPC),
	}
	if p.IsVisible {
		product.Status = "active"
	}
	if p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		compare := p.Price
		product.CompareAtPrice = &compare
		product.Price = p.SalePrice
	}
	if p.CostPrice.IsPositive() {
		cost := p.CostPrice
		product.CostPrice = &cost
	}
	if product.GTIN == "" && len(p.Variants) > 0 {
		product.GTIN = firstNonEmpty(p.Variants[0].GTIN, p.Variants[0].UPC)
	}
	for _, img := range p.Images {
		if img.IsThumbnail || product.ImageURL == "" {
			product.ImageURL = img.URLStandard
		}
	}
	if t.storeURL != "" && p.CustomURL.URL != "" {
		product.ProductURL = t.storeURL + p.CustomURL.URL
	}
	return product
}

func (t *Transformer) TransformOrder(o *Order, now time.Time) models.Order {
	currency := o.CurrencyCode
	if currency == "" {
		currency = t.currency
	}
	return models.Order{
		SyncedRecord:      models.NewSyncedRecord(t.business, Source, strconv.Itoa(o.ID), now),
		OrderNumber:       strconv.Itoa(o.ID),
		Email:             o.BillingAddress.Email,
		FinancialStatus:   o.PaymentStatus,
		FulfillmentStatus: o.Status,
		Subtotal:          o.SubtotalIncTax,
		Total:             o.TotalIncTax,
		Currency:          currency,
		LineItemCount:     o.ItemsTotal,
		PlacedAt:          o.CreatedAt(),
	}
}

func availability(p *Product) models.ProductAvailability {
	switch p.Availability {
	case "preorder":
		return models.AvailabilityPreorder
	case "disabled":
		return models.AvailabilityOutOfStock
	}
	if p.InventoryTracking != "none" && p.InventoryLevel <= 0 {
		return models.AvailabilityOutOfStock
	}
	return models.AvailabilityInStock
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
