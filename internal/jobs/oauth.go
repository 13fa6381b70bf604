package jobs

import (
	"context"
	"net/http"

	"opshub/internal/httpx"
	"opshub/internal/models"
	"opshub/internal/store"

	"golang.org/x/oauth2"
)

// oauthClient mints access tokens from the integration's client_id,
// client_secret and refresh_token. The returned job wrapper stores a rotated
// refresh token once the run is over.
func oauthClient(ctx context.Context, integration *models.Integration, deps Deps, endpoint oauth2.Endpoint, scopes ...string) (*http.Client, func(Job) Job, error) {
	clientID, err := integration.Credential("client_id")
	if err != nil {
		return nil, nil, err
	}
	clientSecret, err := integration.Credential("client_secret")
	if err != nil {
		return nil, nil, err
	}
	refreshToken, err := integration.Credential("refresh_token")
	if err != nil {
		return nil, nil, err
	}
	if tokenURL := integration.Setting("token_url", ""); tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	client, source := httpx.RefreshTokenClient(ctx, conf, refreshToken, deps.HTTP.Timeout)

	wrap := func(job Job) Job {
		return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
			res, err := job.Run(ctx, sink)
			persistRefreshToken(context.WithoutCancel(ctx), integration, deps, source.Last(), refreshToken)
			return res, err
		})
	}
	return client, wrap, nil
}

func persistRefreshToken(ctx context.Context, integration *models.Integration, deps Deps, token *oauth2.Token, previous string) {
	if deps.Integrations == nil || token == nil || token.RefreshToken == "" || token.RefreshToken == previous {
		return
	}
	if err := deps.Integrations.SetCredential(ctx, integration.ID, "refresh_token", token.RefreshToken); err != nil {
		deps.log().Error("Failed to store rotated refresh token: %v", err)
		return
	}
	deps.log().Info("Stored rotated refresh token for %s", integration.Name)
}
