package hubspot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opshub/internal/httpx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListContacts_Paging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		assert.Equal(t, "Bearer pat-na1-123", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("properties"), "lifecyclestage")
		if r.URL.Query().Get("after") == "" {
			w.Write([]byte(`{"results":[{"id":"101","properties":{"email":" Jo@Example.com ","firstname":"Jo","lifecyclestage":"customer"}}],"paging":{"next":{"after":"102"}}}`))
			return
		}
		w.Write([]byte(`{"results":[{"id":"102","properties":{"email":"sam@example.com"}}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "pat-na1-123", httpx.Options{})

	page, err := c.ListContacts(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, "102", page.NextAfter())

	contact := page.Results[0].ToModel("elevate", time.Now())
	assert.Equal(t, "jo@example.com", contact.Email)
	assert.Equal(t, "customer", contact.LifecycleStage)
	assert.Equal(t, "101", contact.ExternalID)

	page, err = c.ListContacts(context.Background(), "102", 0)
	require.NoError(t, err)
	assert.Empty(t, page.NextAfter())
}
