package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestRefreshTokenClient_ExchangesAndRotates(t *testing.T) {
	var refreshes int
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		refreshes++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":1800,"refresh_token":"new-refresh"}`))
	}))
	defer tokenServer.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	conf := &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: tokenServer.URL, AuthStyle: oauth2.AuthStyleInParams}}
	httpClient, source := RefreshTokenClient(context.Background(), conf, "old-refresh", time.Second)

	assert.Nil(t, source.Last())

	c := New("xero", api.URL, Options{HTTPClient: httpClient})
	_, err := c.Get(context.Background(), "/a", nil, nil)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshes)

	require.NotNil(t, source.Last())
	assert.Equal(t, "new-refresh", source.Last().RefreshToken)
	assert.Equal(t, 1, refreshes)
}
