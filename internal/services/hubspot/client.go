package hubspot

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"
	Source         = "hubspot"
)

// ContactProperties are requested on every contact page.
var ContactProperties = []string{"email", "firstname", "lastname", "company", "lifecyclestage", "hs_lead_status"}

type Client struct {
	http *httpx.Client
}

// NewClient authenticates with a private app token.
func NewClient(baseURL, token string, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// private apps get 100 requests per 10 seconds
	c := httpx.New("hubspot", baseURL, opts.With(9, 5))
	c.SetBearer(token)
	return &Client{http: c}
}

type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Archived   bool              `json:"archived"`
}

type ContactsPage struct {
	Results []Contact `json:"results"`
	Paging  struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// NextAfter is the cursor for the following page, empty on the last one.
func (p *ContactsPage) NextAfter() string {
	return p.Paging.Next.After
}

// ListContacts fetches one page of CRM contacts.
func (c *Client) ListContacts(ctx context.Context, after string, limit int) (*ContactsPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("properties", strings.Join(ContactProperties, ","))
	params.Set("archived", "false")
	if after != "" {
		params.Set("after", after)
	}

	var page ContactsPage
	if _, err := c.http.Get(ctx, "/crm/v3/objects/contacts", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ToModel maps a HubSpot contact onto the contacts table.
func (ct *Contact) ToModel(business string, now time.Time) models.Contact {
	p := ct.Properties
	return models.Contact{
		SyncedRecord:   models.NewSyncedRecord(business, Source, ct.ID, now),
		Email:          strings.ToLower(strings.TrimSpace(p["email"])),
		FirstName:      p["firstname"],
		LastName:       p["lastname"],
		Company:        p["company"],
		LifecycleStage: p["lifecyclestage"],
		LeadStatus:     p["hs_lead_status"],
	}
}
