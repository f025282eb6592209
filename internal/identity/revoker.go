package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Revoker revokes access tokens at an RFC 7009 revocation endpoint.
type Revoker struct {
	revokeURL  string
	clientID   string
	httpClient *http.Client
}

// NewRevoker creates a Revoker. A nil httpClient uses a client with a 10s timeout.
func NewRevoker(revokeURL, clientID string, httpClient *http.Client) *Revoker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Revoker{
		revokeURL:  revokeURL,
		clientID:   clientID,
		httpClient: httpClient,
	}
}

// RevokeOAuthCreds revokes accessToken.
func (r *Revoker) RevokeOAuthCreds(ctx context.Context, accessToken string) error {
	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {r.clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("revocation endpoint returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
