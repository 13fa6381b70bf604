package gmail

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"opshub/internal/httpx"
	"opshub/internal/models"
)

const (
	DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"
	ScopeReadonly  = "https://www.googleapis.com/auth/gmail.readonly"
	Source         = "gmail"
)

type Client struct {
	http *httpx.Client
	user string
}

// NewClient reads the mailbox of user ("me" for the token owner). The
// httpClient carries OAuth2 credentials.
func NewClient(baseURL, user string, httpClient *http.Client, opts httpx.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if user == "" {
		user = "me"
	}
	opts.HTTPClient = httpClient
	return &Client{http: httpx.New("gmail", baseURL, opts.With(10, 10)), user: user}
}

type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type MessagesPage struct {
	Messages      []MessageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Message struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"threadId"`
	LabelIDs     []string `json:"labelIds"`
	Snippet      string   `json:"snippet"`
	InternalDate string   `json:"internalDate"`
	Payload      struct {
		Headers []Header `json:"headers"`
	} `json:"payload"`
}

// Header returns the first header with the given name, case-insensitively.
func (m *Message) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ReceivedAt uses internalDate (epoch millis), falling back to the Date header.
func (m *Message) ReceivedAt() time.Time {
	if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	if t, err := mail.ParseDate(m.Header("Date")); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// ListMessages fetches one page of message IDs matching a Gmail search query.
func (c *Client) ListMessages(ctx context.Context, query, pageToken string, maxResults int) (*MessagesPage, error) {
	if maxResults <= 0 || maxResults > 500 {
		maxResults = 100
	}
	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(maxResults))
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var page MessagesPage
	if _, err := c.http.Get(ctx, "/users/"+url.PathEscape(c.user)+"/messages", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMessage fetches headers and snippet only, never the body.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	params := url.Values{}
	params.Set("format", "metadata")
	for _, h := range []string{"From", "To", "Subject", "Date"} {
		params.Add("metadataHeaders", h)
	}

	var msg Message
	path := "/users/" + url.PathEscape(c.user) + "/messages/" + url.PathEscape(id)
	if _, err := c.http.Get(ctx, path, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Message) ToModel(business, mailbox string, now time.Time) models.EmailMessage {
	return models.EmailMessage{
		SyncedRecord: models.NewSyncedRecord(business, Source, m.ID, now),
		Mailbox:      mailbox,
		ThreadID:     m.ThreadID,
		From:         m.Header("From"),
		To:           m.Header("To"),
		Subject:      m.Header("Subject"),
		Snippet:      m.Snippet,
		Labels:       strings.Join(m.LabelIDs, ","),
		ReceivedAt:   m.ReceivedAt(),
	}
}
