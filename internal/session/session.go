package session

import (
	"slices"
	"time"
)

// Account is a single game account belonging to a user.
type Account struct {
	AccountID   string `json:"accountId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	// UserHash is an opaque identifier some games use instead of the account id.
	UserHash string `json:"userHash,omitempty"`
}

// AuthTokens holds the credentials returned by the identity provider.
// Sub is the external identity claim correlated to Account.UserID.
type AuthTokens struct {
	Sub          string    `json:"sub"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry"`
	// SessionID is the game session identifier the tokens were exchanged for.
	SessionID string `json:"session_id,omitempty"`
}

// Expired reports whether the access token has passed its expiry at now.
// A zero expiry never expires.
func (t AuthTokens) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// Session is an authenticated user's in-memory record.
type Session struct {
	User     Account    `json:"user"`
	Accounts []Account  `json:"accounts"`
	Tokens   AuthTokens `json:"tokens"`
}

// UserID returns the identity key of the session.
func (s Session) UserID() string {
	return s.User.UserID
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	s.Accounts = slices.Clone(s.Accounts)
	return s
}

// FindAccount returns the account with the given id from accounts.
func FindAccount(accounts []Account, accountID string) (Account, bool) {
	i := slices.IndexFunc(accounts, func(a Account) bool { return a.AccountID == accountID })
	if i < 0 {
		return Account{}, false
	}
	return accounts[i], true
}
