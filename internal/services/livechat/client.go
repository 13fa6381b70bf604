package livechat

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://api.livechatinc.com/v3.5"
	Source         = "livechat"
)

type Client struct {
	http *httpx.Client
}

// NewClient authenticates with a personal access token; accountID is the
// username half of the Basic credentials.
func NewClient(baseURL, accountID, token string, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := httpx.New("livechat", baseURL, opts.With(5, 5))
	creds := base64.StdEncoding.EncodeToString([]byte(accountID + ":" + token))
	c.SetHeader("Authorization", "Basic "+creds)
	return &Client{http: c}
}

type User struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Thread struct {
	ID         string                            `json:"id"`
	Active     bool                              `json:"active"`
	Tags       []string                          `json:"tags"`
	Events     []Event                           `json:"events"`
	CreatedAt  time.Time                         `json:"created_at"`
	Properties map[string]map[string]interface{} `json:"properties"`
}

type Chat struct {
	ID     string `json:"id"`
	Users  []User `json:"users"`
	Thread Thread `json:"thread"`
}

type ArchivesPage struct {
	Chats      []Chat `json:"chats"`
	NextPageID string `json:"next_page_id"`
	FoundChats int    `json:"found_chats"`
}

type archivesRequest struct {
	Limit   int                    `json:"limit,omitempty"`
	PageID  string                 `json:"page_id,omitempty"`
	Filters map[string]interface{} `json:"filters,omitempty"`
}

// ListArchives fetches one page of archived chats. Filters are only sent
// with the first page; the page ID carries them afterwards.
func (c *Client) ListArchives(ctx context.Context, pageID string, from time.Time) (*ArchivesPage, error) {
	req := archivesRequest{PageID: pageID}
	if pageID == "" {
		req.Limit = 100
		if !from.IsZero() {
			req.Filters = map[string]interface{}{"from": from.UTC().Format(time.RFC3339)}
		}
	}

	var page ArchivesPage
	if _, err := c.http.Post(ctx, "/agent/action/list_archives", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ToModel flattens a chat into a transcript row.
func (ch *Chat) ToModel(business string, now time.Time) models.ChatTranscript {
	transcript := models.ChatTranscript{
		SyncedRecord: models.NewSyncedRecord(business, Source, ch.ID+":"+ch.Thread.ID, now),
		StartedAt:    ch.Thread.CreatedAt,
		Tags:         strings.Join(ch.Thread.Tags, ","),
		Rating:       rating(ch.Thread.Properties),
	}

	customers := make(map[string]bool)
	for _, u := range ch.Users {
		switch u.Type {
		case "customer":
			transcript.CustomerName = u.Name
			transcript.CustomerEmail = u.Email
			customers[u.ID] = true
		case "agent":
			if transcript.AgentEmail == "" {
				transcript.AgentEmail = u.Email
			}
		}
	}

	for _, e := range ch.Thread.Events {
		if e.Type != "message" {
			continue
		}
		transcript.MessageCount++
		if transcript.FirstMessage == "" && customers[e.AuthorID] {
			transcript.FirstMessage = truncate(e.Text, 500)
		}
	}
	if n := len(ch.Thread.Events); n > 0 && !ch.Thread.Active {
		ended := ch.Thread.Events[n-1].CreatedAt
		transcript.EndedAt = &ended
	}
	return transcript
}

func rating(props map[string]map[string]interface{}) string {
	score, ok := props["rating"]["score"]
	if !ok || score == nil {
		return ""
	}
	switch v := score.(type) {
	case float64:
		if v > 0 {
			return "good"
		}
		return "bad"
	case map[string]interface{}:
		if value, ok := v["value"].(float64); ok {
			if value > 0 {
				return "good"
			}
			return "bad"
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
