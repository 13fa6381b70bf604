package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// GoogleEndpoint is Google's OAuth2 endpoint, spelled out so the google
// subpackage and its metadata dependency are not pulled in.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var XeroEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.xero.com/identity/connect/authorize",
	TokenURL: "https://identity.xero.com/connect/token",
}

// RefreshTokenClient returns an HTTP client that authorises every request
// with an access token minted from refreshToken, plus the token source so a
// rotated refresh token can be persisted by the caller.
func RefreshTokenClient(ctx context.Context, conf *oauth2.Config, refreshToken string, timeout time.Duration) (*http.Client, *TokenRecorder) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	source := &TokenRecorder{base: oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}))}
	client := oauth2.NewClient(ctx, source)
	client.Timeout = timeout
	return client, source
}

// TokenRecorder is a token source that remembers the last token it handed out.
type TokenRecorder struct {
	base oauth2.TokenSource
	mu   sync.Mutex
	last *oauth2.Token
}

func (r *TokenRecorder) Token() (*oauth2.Token, error) {
	token, err := r.base.Token()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.last = token
	r.mu.Unlock()
	return token, nil
}

// Last returns the most recent token without refreshing, nil before first use.
func (r *TokenRecorder) Last() *oauth2.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
