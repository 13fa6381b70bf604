package bigcommerce

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"opshub/internal/httpx"
)

const DefaultBaseURL = "https://api.bigcommerce.com"

type Client struct {
	http *httpx.Client
}

// NewClient talks to one store identified by its store hash.
func NewClient(baseURL, storeHash, accessToken string, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := httpx.New("bigcommerce", baseURL+"/stores/"+storeHash, opts.With(5, 5))
	c.SetHeader("X-Auth-Token", accessToken)
	return &Client{http: c}
}

// ListProducts fetches one page of the v3 catalog with variants and images.
func (c *Client) ListProducts(ctx context.Context, page, limit int) (*ProductsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("limit", strconv.Itoa(pageLimit(limit)))
	params.Set("include", "variants,images")

	var resp ProductsPage
	if _, err := c.http.Get(ctx, "/v3/catalog/products", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBrands returns brand names keyed by ID.
func (c *Client) ListBrands(ctx context.Context) (map[int]string, error) {
	brands := make(map[int]string)
	for page := 1; ; page++ {
		params := url.Values{"page": {strconv.Itoa(page)}, "limit": {"250"}}
		var resp struct {
			Data []Brand  `json:"data"`
			Meta Metadata `json:"meta"`
		}
		if _, err := c.http.Get(ctx, "/v3/catalog/brands", params, &resp); err != nil {
			return nil, err
		}
		for _, b := range resp.Data {
			brands[b.ID] = b.Name
		}
		if page >= resp.Meta.Pagination.TotalPages {
			return brands, nil
		}
	}
}

// ListOrders fetches one page of v2 orders modified since minModified. An
// empty page means there are no more.
func (c *Client) ListOrders(ctx context.Context, page, limit int, minModified time.Time) ([]Order, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("limit", strconv.Itoa(pageLimit(limit)))
	params.Set("sort", "date_modified:asc")
	if !minModified.IsZero() {
		params.Set("min_date_modified", minModified.Format(time.RFC3339))
	}

	var orders []Order
	if _, err := c.http.Get(ctx, "/v2/orders", params, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func pageLimit(limit int) int {
	if limit <= 0 || limit > 250 {
		return 250
	}
	return limit
}
