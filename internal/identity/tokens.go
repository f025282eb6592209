package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/florianilch/lodestone/internal/session"
)

// SubjectFromIDToken returns the sub claim of an OpenID Connect id_token.
// The signature is not verified; the token came straight from the token
// endpoint over TLS and is only used to correlate the user id.
func SubjectFromIDToken(idToken string) (string, error) {
	if idToken == "" {
		return "", errors.New("empty id_token")
	}

	token, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing id_token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("reading sub claim: %w", err)
	}
	if sub == "" {
		return "", errors.New("id_token has no sub claim")
	}
	return sub, nil
}

// TokensFromOAuth2 converts an oauth2 token into AuthTokens. The subject is
// taken from the id_token extra field when present.
func TokensFromOAuth2(tok *oauth2.Token) session.AuthTokens {
	tokens := session.AuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
		if sub, err := SubjectFromIDToken(idToken); err == nil {
			tokens.Sub = sub
		}
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		tokens.Scope = scope
	}
	return tokens
}

// ToOAuth2 converts AuthTokens into an oauth2 token.
func ToOAuth2(t session.AuthTokens) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
