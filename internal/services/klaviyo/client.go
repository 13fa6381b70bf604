package klaviyo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://a.klaviyo.com/api"
	Revision       = "2024-02-15"
	Source         = "klaviyo"
)

type Client struct {
	http *httpx.Client
}

func NewClient(baseURL, apiKey string, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := httpx.New("klaviyo", baseURL, opts.With(3, 3))
	c.SetHeader("Authorization", "Klaviyo-API-Key "+apiKey)
	c.SetHeader("revision", Revision)
	return &Client{http: c}
}

type Campaign struct {
	ID         string `json:"id"`
	Attributes struct {
		Name      string     `json:"name"`
		Status    string     `json:"status"`
		Archived  bool       `json:"archived"`
		SendTime  *time.Time `json:"send_time"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	} `json:"attributes"`
}

type CampaignsPage struct {
	Data  []Campaign `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// ListCampaigns fetches one page of email campaigns. next is the absolute
// links.next URL from the previous page.
func (c *Client) ListCampaigns(ctx context.Context, next string) (*CampaignsPage, error) {
	path := next
	var params url.Values
	if path == "" {
		path = "/campaigns/"
		params = url.Values{"filter": {"equals(messages.channel,'email')"}}
	}

	var page CampaignsPage
	if _, err := c.http.Get(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Stats are the headline numbers of one campaign.
type Stats struct {
	Recipients   int
	Opens        int
	Clicks       int
	Bounces      int
	Unsubscribes int
}

type reportRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Statistics         []string          `json:"statistics"`
			Timeframe          map[string]string `json:"timeframe"`
			ConversionMetricID string            `json:"conversion_metric_id"`
			Filter             string            `json:"filter"`
		} `json:"attributes"`
	} `json:"data"`
}

type reportResponse struct {
	Data struct {
		Attributes struct {
			Results []struct {
				Groupings  map[string]string  `json:"groupings"`
				Statistics map[string]float64 `json:"statistics"`
			} `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
}

// CampaignStats runs the campaign values report for the given campaigns over
// the last twelve months. Klaviyo requires a conversion metric for it.
func (c *Client) CampaignStats(ctx context.Context, campaignIDs []string, conversionMetricID string) (map[string]Stats, error) {
	out := make(map[string]Stats)
	if len(campaignIDs) == 0 || conversionMetricID == "" {
		return out, nil
	}

	quoted := make([]string, len(campaignIDs))
	for i, id := range campaignIDs {
		quoted[i] = fmt.Sprintf("%q", id)
	}

	var req reportRequest
	req.Data.Type = "campaign-values-report"
	req.Data.Attributes.Statistics = []string{"recipients", "opens_unique", "clicks_unique", "bounced", "unsubscribes"}
	req.Data.Attributes.Timeframe = map[string]string{"key": "last_12_months"}
	req.Data.Attributes.ConversionMetricID = conversionMetricID
	req.Data.Attributes.Filter = fmt.Sprintf("contains-any(campaign_id,[%s])", strings.Join(quoted, ","))

	var resp reportResponse
	if _, err := c.http.Post(ctx, "/campaign-values-reports/", req, &resp); err != nil {
		return nil, err
	}
	for _, r := range resp.Data.Attributes.Results {
		id := r.Groupings["campaign_id"]
		s := out[id]
		s.Recipients += int(r.Statistics["recipients"])
		s.Opens += int(r.Statistics["opens_unique"])
		s.Clicks += int(r.Statistics["clicks_unique"])
		s.Bounces += int(r.Statistics["bounced"])
		s.Unsubscribes += int(r.Statistics["unsubscribes"])
		out[id] = s
	}
	return out, nil
}

// ToModel maps a Klaviyo campaign and its stats onto the campaigns table.
func (cp *Campaign) ToModel(business string, stats Stats, now time.Time) models.Campaign {
	return models.Campaign{
		SyncedRecord: models.NewSyncedRecord(business, Source, cp.ID, now),
		Name:         cp.Attributes.Name,
		Status:       strings.ToLower(cp.Attributes.Status),
		Channel:      "email",
		Sent:         stats.Recipients,
		Opens:        stats.Opens,
		Clicks:       stats.Clicks,
		Bounces:      stats.Bounces,
		Unsubscribes: stats.Unsubscribes,
		SentAt:       cp.Attributes.SendTime,
	}
}
