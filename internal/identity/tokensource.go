package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/lodestone/internal/session"
)

// scopes requested when refreshing launcher tokens.
var scopes = []string{"openid", "offline", "gamesso.token.create", "user.profile.read"}

// Endpoint returns the OAuth2 endpoint for the given token URL.
func Endpoint(tokenURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// RefresherOption configures a Refresher.
type RefresherOption func(*refresherConfig)

type refresherConfig struct {
	baseTransport http.RoundTripper
}

// WithTransport sets a custom base transport for token refresh requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) RefresherOption {
	return func(c *refresherConfig) {
		c.baseTransport = transport
	}
}

// Refresher exchanges stored refresh tokens for new AuthTokens.
type Refresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewRefresher creates a Refresher for a public client (no client secret).
func NewRefresher(clientID string, endpoint oauth2.Endpoint, opts ...RefresherOption) *Refresher {
	cfg := &refresherConfig{
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Refresher{
		config: &oauth2.Config{
			ClientID: clientID,
			Scopes:   scopes,
			Endpoint: endpoint,
		},
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: cfg.baseTransport,
		},
	}
}

// TokenSource returns an oauth2.TokenSource seeded with tokens. It refreshes
// once the access token expires.
func (r *Refresher) TokenSource(ctx context.Context, tokens session.AuthTokens) oauth2.TokenSource {
	// oauth2 picks the HTTP client up from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	return r.config.TokenSource(ctx, ToOAuth2(tokens))
}

// Refresh forces a refresh of tokens. Fields the token endpoint omits (the
// refresh token, the subject, the session id) carry over from tokens.
func (r *Refresher) Refresh(ctx context.Context, tokens session.AuthTokens) (session.AuthTokens, error) {
	if tokens.RefreshToken == "" {
		return session.AuthTokens{}, errors.New("no refresh token stored")
	}

	stale := tokens
	stale.AccessToken = ""
	stale.Expiry = time.Unix(1, 0)

	tok, err := r.TokenSource(ctx, stale).Token()
	if err != nil {
		return session.AuthTokens{}, fmt.Errorf("refreshing token: %w", err)
	}

	fresh := TokensFromOAuth2(tok)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	if fresh.Sub == "" {
		fresh.Sub = tokens.Sub
	}
	if fresh.IDToken == "" {
		fresh.IDToken = tokens.IDToken
	}
	fresh.SessionID = tokens.SessionID
	return fresh, nil
}
