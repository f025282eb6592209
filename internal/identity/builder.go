package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/florianilch/lodestone/internal/session"
)

// Builder turns freshly issued tokens into a Session by looking up the user's
// display name and game accounts.
type Builder struct {
	profileURL  string
	accountsURL string
	httpClient  *http.Client
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderHTTPClient sets the HTTP client used for lookups.
func WithBuilderHTTPClient(c *http.Client) BuilderOption {
	return func(b *Builder) {
		b.httpClient = c
	}
}

// NewBuilder creates a Builder. profileURL is the base of the user profile
// API, accountsURL lists the accounts of a game session.
func NewBuilder(profileURL, accountsURL string, opts ...BuilderOption) *Builder {
	b := &Builder{
		profileURL:  profileURL,
		accountsURL: accountsURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type displayNameResponse struct {
	DisplayName   string `json:"displayName"`
	Discriminator string `json:"discriminator"`
}

type accountResponse struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	UserHash    string `json:"userHash"`
}

// BuildSession implements the identity builder. Every failure is a *BuildError.
func (b *Builder) BuildSession(ctx context.Context, tokens session.AuthTokens, sessionID string) (session.Session, error) {
	if sessionID == "" {
		return session.Session{}, &BuildError{Reason: "missing session id"}
	}
	if tokens.AccessToken == "" {
		return session.Session{}, &BuildError{Reason: "missing access token"}
	}

	sub := tokens.Sub
	if sub == "" {
		var err error
		if sub, err = SubjectFromIDToken(tokens.IDToken); err != nil {
			return session.Session{}, &BuildError{Reason: "unable to determine user id", Err: err}
		}
	}

	var profile displayNameResponse
	profileURL, err := url.JoinPath(b.profileURL, "users", sub, "displayName")
	if err != nil {
		return session.Session{}, &BuildError{Reason: "invalid profile URL", Err: err}
	}
	if err := b.getJSON(ctx, profileURL, tokens.AccessToken, &profile); err != nil {
		return session.Session{}, &BuildError{Reason: "failed to fetch display name", Err: err}
	}

	var accounts []accountResponse
	if err := b.getJSON(ctx, b.accountsURL, sessionID, &accounts); err != nil {
		return session.Session{}, &BuildError{Reason: "failed to fetch game accounts", Err: err}
	}

	displayName := profile.DisplayName
	if profile.Discriminator != "" {
		displayName += "#" + profile.Discriminator
	}

	sess := session.Session{
		User:     session.Account{UserID: sub, DisplayName: displayName},
		Accounts: make([]session.Account, 0, len(accounts)),
		Tokens:   tokens,
	}
	sess.Tokens.Sub = sub
	sess.Tokens.SessionID = sessionID
	for _, a := range accounts {
		sess.Accounts = append(sess.Accounts, session.Account{
			AccountID:   a.AccountID,
			UserID:      sub,
			DisplayName: a.DisplayName,
			UserHash:    a.UserHash,
		})
	}
	return sess, nil
}

func (b *Builder) getJSON(ctx context.Context, target, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
