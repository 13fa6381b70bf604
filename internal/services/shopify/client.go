package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"opshub/internal/httpx"
)

const DefaultAPIVersion = "2024-01"

type Client struct {
	http *httpx.Client
}

// NewClient accepts a bare shop name, a myshopify domain or a full base URL.
func NewClient(shopDomain, accessToken, apiVersion string, opts httpx.Options) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	base := shopDomain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if !strings.Contains(base, ".") {
			base += ".myshopify.com"
		}
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/") + "/admin/api/" + apiVersion

	// Shopify's REST bucket leaks 2 requests per second
	c := httpx.New("shopify", base, opts.With(2, 4))
	c.SetHeader("X-Shopify-Access-Token", accessToken)
	return &Client{http: c}
}

// GetShop fetches shop information
func (c *Client) GetShop(ctx context.Context) (*Shop, error) {
	var resp struct {
		Shop Shop `json:"shop"`
	}
	if _, err := c.http.Get(ctx, "/shop.json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Shop, nil
}

// ListProducts fetches one page of products. pageInfo is the cursor from the
// previous page; Shopify rejects other filters alongside it.
func (c *Client) ListProducts(ctx context.Context, pageInfo string, limit int) (*ProductsPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit(limit)))
	if pageInfo != "" {
		params.Set("page_info", pageInfo)
	}

	var page ProductsPage
	header, err := c.http.Get(ctx, "/products.json", params, &page)
	if err != nil {
		return nil, err
	}
	page.NextPage = nextPageInfo(header)
	return &page, nil
}

// ListOrders fetches one page of orders of any status updated since updatedMin.
func (c *Client) ListOrders(ctx context.Context, pageInfo string, updatedMin time.Time, limit int) (*OrdersPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit(limit)))
	if pageInfo != "" {
		params.Set("page_info", pageInfo)
	} else {
		params.Set("status", "any")
		if !updatedMin.IsZero() {
			params.Set("updated_at_min", updatedMin.Format(time.RFC3339))
		}
	}

	var page OrdersPage
	header, err := c.http.Get(ctx, "/orders.json", params, &page)
	if err != nil {
		return nil, err
	}
	page.NextPage = nextPageInfo(header)
	return &page, nil
}

// GetProduct fetches a single product by ID
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	if _, err := c.http.Get(ctx, fmt.Sprintf("/products/%d.json", productID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func pageLimit(limit int) int {
	if limit <= 0 || limit > 250 {
		return 250
	}
	return limit
}

// nextPageInfo reads the page_info cursor from a Link header of the form
// <url>; rel="previous", <url>; rel="next".
func nextPageInfo(header http.Header) string {
	link := header.Get("Link")
	if link == "" {
		return ""
	}
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(strings.Split(part, ";")[0]), "<>")
		if parsed, err := url.Parse(raw); err == nil {
			return parsed.Query().Get("page_info")
		}
	}
	return ""
}
