package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestClient_ListProductsFollowsLinkHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", `<https://teelixir.myshopify.com/admin/api/2024-01/products.json?limit=250&page_info=abc123>; rel="next"`)
			w.Write([]byte(`{"products":[{"id":1,"title":"Chaga"}]}`))
			return
		}
		assert.Equal(t, "abc123", r.URL.Query().Get("page_info"))
		w.Header().Set("Link", `<https://teelixir.myshopify.com/admin/api/2024-01/products.json?page_info=abc123>; rel="previous"`)
		w.Write([]byte(`{"products":[{"id":2,"title":"Reishi"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "shpat_test", "", httpx.Options{MaxRetries: 0})

	first, err := c.ListProducts(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, first.Products, 1)
	assert.Equal(t, "abc123", first.NextPage)

	second, err := c.ListProducts(context.Background(), first.NextPage, 0)
	require.NoError(t, err)
	assert.Equal(t, "Reishi", second.Products[0].Title)
	assert.Empty(t, second.NextPage)
}

func TestClient_ListOrdersFilters(t *testing.T) {
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "any", q.Get("status"))
		assert.Equal(t, since.Format(time.RFC3339), q.Get("updated_at_min"))
		w.Write([]byte(`{"orders":[{"id":9,"name":"#1001","total_price":"10.00"}]}`))
	}))
	defer server.Close()

	page, err := NewClient(server.URL, "tok", "", httpx.Options{}).ListOrders(context.Background(), "", since, 50)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "#1001", page.Orders[0].Name)
}

func TestTransformer_TransformProduct(t *testing.T) {
	p := &Product{
		ID:          42,
		Title:       "Lion's Mane Mushroom",
		Vendor:      "Teelixir",
		ProductType: "Mushrooms",
		Handle:      "lions-mane",
		Status:      "active",
		Tags:        "adaptogen, focus ,",
		Variants: []Variant{
			{ID: 2, Position: 2, Price: "99.00", Sku: "LM-100", InventoryManagement: "shopify"},
			{ID: 1, Position: 1, Price: "49.95", CompareAtPrice: strPtr("59.95"), Sku: "LM-50", Barcode: strPtr("9344949000186"), InventoryManagement: "shopify", InventoryQuantity: 3},
		},
		Images: []Image{{Src: "https://cdn.shopify.com/lm.jpg"}},
	}
	now := time.Now()

	product, err := NewTransformer(models.BusinessTeelixir, "AUD", "https://teelixir.com/").TransformProduct(p, now)
	require.NoError(t, err)

	assert.Equal(t, "42", product.ExternalID)
	assert.Equal(t, models.BusinessTeelixir, product.BusinessCode)
	assert.Equal(t, "LM-50", product.SKU)
	assert.Equal(t, "49.95", product.Price.StringFixed(2))
	require.NotNil(t, product.CompareAtPrice)
	assert.Equal(t, "59.95", product.CompareAtPrice.StringFixed(2))
	assert.Equal(t, "9344949000186", product.GTIN)
	assert.Equal(t, models.AvailabilityInStock, product.Availability)
	assert.Equal(t, "https://teelixir.com/products/lions-mane", product.ProductURL)
	assert.JSONEq(t, `["adaptogen","focus"]`, string(product.Tags))
}

func TestTransformer_Availability(t *testing.T) {
	out := &Product{ID: 1, Variants: []Variant{{Price: "1", InventoryManagement: "shopify"}}}
	product, err := NewTransformer("boo", "", "").TransformProduct(out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityOutOfStock, product.Availability)

	back := &Product{ID: 1, Variants: []Variant{{Price: "1", InventoryManagement: "shopify", InventoryPolicy: "continue"}}}
	product, _ = NewTransformer("boo", "", "").TransformProduct(back, time.Now())
	assert.Equal(t, models.AvailabilityBackorder, product.Availability)

	_, err = NewTransformer("boo", "", "").TransformProduct(&Product{ID: 7}, time.Now())
	assert.Error(t, err)
}

func TestTransformer_TransformOrder(t *testing.T) {
	o := &Order{
		ID:              1001,
		Name:            "#1001",
		FinancialStatus: "paid",
		TotalPrice:      "120.50",
		SubtotalPrice:   "110.00",
		LineItems:       []LineItem{{Quantity: 2}, {Quantity: 1}},
		CreatedAt:       time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	order, err := NewTransformer(models.BusinessElevate, "AUD", "").TransformOrder(o, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "#1001", order.OrderNumber)
	assert.Equal(t, "unfulfilled", order.FulfillmentStatus)
	assert.Equal(t, 3, order.LineItemCount)
	assert.Equal(t, "AUD", order.Currency)
	assert.Equal(t, "120.5", order.Total.String())
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":1}`)
	sig := SignWebhook(body, "shh")
	assert.True(t, VerifyWebhook(body, sig, "shh"))
	assert.False(t, VerifyWebhook(body, sig, "other"))
	assert.False(t, VerifyWebhook([]byte(`{"id":2}`), sig, "shh"))
	assert.False(t, VerifyWebhook(body, "", "shh"))
}
