package xero

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.xero.com/api.xro/2.0"
	Source         = "xero"
	PageSize       = 100
)

type Client struct {
	http *httpx.Client
}

// NewClient reads one Xero organisation. httpClient carries OAuth2
// credentials; tenantID selects the organisation.
func NewClient(baseURL, tenantID string, httpClient *http.Client, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts.HTTPClient = httpClient
	// 60 calls per minute per tenant
	c := httpx.New("xero", baseURL, opts.With(1, 5))
	c.SetHeader("xero-tenant-id", tenantID)
	return &Client{http: c}
}

type Invoice struct {
	InvoiceID     string          `json:"InvoiceID"`
	InvoiceNumber string          `json:"InvoiceNumber"`
	Type          string          `json:"Type"`
	Status        string          `json:"Status"`
	Total         decimal.Decimal `json:"Total"`
	AmountDue     decimal.Decimal `json:"AmountDue"`
	CurrencyCode  string          `json:"CurrencyCode"`
	DateString    string          `json:"DateString"`
	DueDateString string          `json:"DueDateString"`
	UpdatedDate   string          `json:"UpdatedDateUTC"`
	Contact       struct {
		Name string `json:"Name"`
	} `json:"Contact"`
}

// ListInvoices fetches one page (100 invoices) updated since modifiedSince.
// A short page is the last one.
func (c *Client) ListInvoices(ctx context.Context, page int, modifiedSince time.Time) ([]Invoice, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("order", "UpdatedDateUTC ASC")
	if !modifiedSince.IsZero() {
		t := modifiedSince.UTC()
		params.Set("where", fmt.Sprintf("UpdatedDateUTC>=DateTime(%d,%02d,%02d,%02d,%02d,%02d)",
			t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second()))
	}

	var resp struct {
		Invoices []Invoice `json:"Invoices"`
	}
	if _, err := c.http.Get(ctx, "/Invoices", params, &resp); err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}

// Organisation is the tenant the token is connected to.
type Organisation struct {
	Name         string `json:"Name"`
	BaseCurrency string `json:"BaseCurrency"`
	Timezone     string `json:"Timezone"`
}

func (c *Client) GetOrganisation(ctx context.Context) (*Organisation, error) {
	var resp struct {
		Organisations []Organisation `json:"Organisations"`
	}
	if _, err := c.http.Get(ctx, "/Organisation", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Organisations) == 0 {
		return nil, fmt.Errorf("xero: no organisation for tenant")
	}
	return &resp.Organisations[0], nil
}

var msDate = regexp.MustCompile(`/Date\((-?\d+)([+-]\d{4})?\)/`)

// ParseDate understands both the DateString form and the /Date(ms+0000)/ form.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if m := msDate.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (inv *Invoice) ToModel(business string, now time.Time) models.Invoice {
	out := models.Invoice{
		SyncedRecord: models.NewSyncedRecord(business, Source, inv.InvoiceID, now),
		Number:       inv.InvoiceNumber,
		Type:         inv.Type,
		ContactName:  inv.Contact.Name,
		Status:       inv.Status,
		Total:        inv.Total,
		AmountDue:    inv.AmountDue,
		Currency:     inv.CurrencyCode,
	}
	if date, ok := ParseDate(inv.DateString); ok {
		out.Date = date
	}
	if due, ok := ParseDate(inv.DueDateString); ok {
		out.DueDate = &due
	}
	return out
}
