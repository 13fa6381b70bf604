package smartlead

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://server.smartlead.ai/api/v1"
	Source         = "smartlead"
)

type Client struct {
	http *httpx.Client
}

// NewClient authenticates every request with the api_key query parameter.
func NewClient(baseURL, apiKey string, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// 10 requests per 2 seconds
	c := httpx.New("smartlead", baseURL, opts.With(4, 2))
	c.SetAuth(func(req *http.Request) {
		q := req.URL.Query()
		q.Set("api_key", apiKey)
		req.URL.RawQuery = q.Encode()
	})
	return &Client{http: c}
}

// Count decodes counters SmartLead sends either as numbers or numeric strings.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %s: %w", data, err)
	}
	*c = Count(n)
	return nil
}

type Campaign struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Analytics struct {
	ID                int   `json:"id"`
	SentCount         Count `json:"sent_count"`
	OpenCount         Count `json:"unique_open_count"`
	ClickCount        Count `json:"unique_click_count"`
	ReplyCount        Count `json:"reply_count"`
	BounceCount       Count `json:"bounce_count"`
	UnsubscribedCount Count `json:"unsubscribed_count"`
}

type Lead struct {
	CampaignLeadMapID json.Number `json:"campaign_lead_map_id"`
	Status            string      `json:"status"`
	Lead              struct {
		ID          json.Number `json:"id"`
		Email       string      `json:"email"`
		FirstName   string      `json:"first_name"`
		LastName    string      `json:"last_name"`
		CompanyName string      `json:"company_name"`
	} `json:"lead"`
}

type LeadsPage struct {
	TotalLeads Count  `json:"total_leads"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	Data       []Lead `json:"data"`
}

func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var campaigns []Campaign
	if _, err := c.http.Get(ctx, "/campaigns", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (c *Client) CampaignAnalytics(ctx context.Context, campaignID int) (*Analytics, error) {
	var analytics Analytics
	if _, err := c.http.Get(ctx, fmt.Sprintf("/campaigns/%d/analytics", campaignID), nil, &analytics); err != nil {
		return nil, err
	}
	return &analytics, nil
}

// ListLeads fetches one offset page of a campaign's leads.
func (c *Client) ListLeads(ctx context.Context, campaignID, offset, limit int) (*LeadsPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	var page LeadsPage
	if _, err := c.http.Get(ctx, fmt.Sprintf("/campaigns/%d/leads", campaignID), params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (cp *Campaign) ToModel(business string, a *Analytics, now time.Time) models.Campaign {
	campaign := models.Campaign{
		SyncedRecord: models.NewSyncedRecord(business, Source, strconv.Itoa(cp.ID), now),
		Name:         cp.Name,
		Status:       strings.ToLower(cp.Status),
		Channel:      "cold-email",
	}
	if a != nil {
		campaign.Sent = int(a.SentCount)
		campaign.Opens = int(a.OpenCount)
		campaign.Clicks = int(a.ClickCount)
		campaign.Replies = int(a.ReplyCount)
		campaign.Bounces = int(a.BounceCount)
		campaign.Unsubscribes = int(a.UnsubscribedCount)
	}
	return campaign
}

// ToModel keys leads by campaign and lead so the same address in two
// campaigns keeps both statuses.
func (l *Lead) ToModel(business string, campaignID int, now time.Time) models.Contact {
	externalID := fmt.Sprintf("%d:%s", campaignID, l.Lead.ID.String())
	return models.Contact{
		SyncedRecord: models.NewSyncedRecord(business, Source, externalID, now),
		Email:        strings.ToLower(strings.TrimSpace(l.Lead.Email)),
		FirstName:    l.Lead.FirstName,
		LastName:     l.Lead.LastName,
		Company:      l.Lead.CompanyName,
		LeadStatus:   l.Status,
		CampaignID:   strconv.Itoa(campaignID),
	}
}
