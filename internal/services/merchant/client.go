package merchant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://shoppingcontent.googleapis.com/content/v2.1"
	ScopeContent   = "https://www.googleapis.com/auth/content"
	Source         = "merchant"
)

type Client struct {
	http *httpx.Client
}

// NewClient reads one Merchant Center account. httpClient carries OAuth2
// credentials.
func NewClient(baseURL, merchantID string, httpClient *http.Client, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts.HTTPClient = httpClient
	return &Client{http: httpx.New("merchant", baseURL+"/"+merchantID, opts.With(5, 5))}
}

type DestinationStatus struct {
	Destination          string   `json:"destination"`
	ApprovedCountries    []string `json:"approvedCountries"`
	PendingCountries     []string `json:"pendingCountries"`
	DisapprovedCountries []string `json:"disapprovedCountries"`
}

type ItemLevelIssue struct {
	Code                string   `json:"code"`
	Servability         string   `json:"servability"`
	Resolution          string   `json:"resolution"`
	AttributeName       string   `json:"attributeName"`
	Destination         string   `json:"destination"`
	Description         string   `json:"description"`
	Detail              string   `json:"detail"`
	Documentation       string   `json:"documentation"`
	ApplicableCountries []string `json:"applicableCountries"`
}

type ProductStatus struct {
	ProductID            string              `json:"productId"`
	Title                string              `json:"title"`
	Link                 string              `json:"link"`
	DestinationStatuses  []DestinationStatus `json:"destinationStatuses"`
	ItemLevelIssues      []ItemLevelIssue    `json:"itemLevelIssues"`
	LastUpdateDate       string              `json:"lastUpdateDate"`
	GoogleExpirationDate string              `json:"googleExpirationDate"`
}

type StatusesPage struct {
	Resources     []ProductStatus `json:"resources"`
	NextPageToken string          `json:"nextPageToken"`
}

// ListProductStatuses fetches one page of product statuses.
func (c *Client) ListProductStatuses(ctx context.Context, pageToken string) (*StatusesPage, error) {
	params := url.Values{}
	params.Set("maxResults", "250")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var page StatusesPage
	if _, err := c.http.Get(ctx, "/productstatuses", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// OfferID is the last segment of channel:language:country:offerId.
func (s *ProductStatus) OfferID() string {
	parts := strings.SplitN(s.ProductID, ":", 4)
	return parts[len(parts)-1]
}

// Disapproved reports whether any destination rejects the offer.
func (s *ProductStatus) Disapproved() bool {
	for _, d := range s.DestinationStatuses {
		if len(d.DisapprovedCountries) > 0 {
			return true
		}
	}
	return false
}

// BlockingIssues are the item issues that stop the offer from serving.
func (s *ProductStatus) BlockingIssues() []ItemLevelIssue {
	var out []ItemLevelIssue
	for _, issue := range s.ItemLevelIssues {
		if issue.Servability == "disapproved" {
			out = append(out, issue)
		}
	}
	return out
}

func (s *ProductStatus) ToModel(business string, now time.Time) models.MerchantProductStatus {
	var approved, disapproved []string
	for _, d := range s.DestinationStatuses {
		if len(d.ApprovedCountries) > 0 {
			approved = append(approved, d.Destination)
		}
		if len(d.DisapprovedCountries) > 0 {
			disapproved = append(disapproved, d.Destination)
		}
	}
	issues, _ := json.Marshal(s.ItemLevelIssues)
	if len(s.ItemLevelIssues) == 0 {
		issues = []byte("[]")
	}

	status := models.MerchantProductStatus{
		SyncedRecord:  models.NewSyncedRecord(business, Source, s.ProductID, now),
		OfferID:       s.OfferID(),
		Title:         s.Title,
		Approved:      strings.Join(approved, ","),
		Disapproved:   strings.Join(disapproved, ","),
		IsDisapproved: len(disapproved) > 0,
		IssueCount:    len(s.ItemLevelIssues),
		Issues:        issues,
		LastCheckedAt: now,
	}
	if t, err := time.Parse(time.RFC3339, s.GoogleExpirationDate); err == nil {
		status.GoogleExpiresAt = &t
	}
	return status
}
