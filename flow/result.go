package flow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oidc-agent/internal/utils"
	"github.com/jrsteele09/go-oidc-agent/oauthmodel"
)

// Result is the outcome of a successful flow: a usable access token with a
// well-defined absolute expiry, plus whatever else the issuer handed back.
// Flows never write to the account; applying a Result is the acquisition
// service's job.
type Result struct {
	AccessToken string
	ExpiresAt   time.Time

	// RefreshToken is set when the issuer issued or rotated a refresh token
	// as part of the exchange. It must then replace the stored one.
	RefreshToken string

	// Scope is the granted scope, which may be narrower than requested.
	Scope string

	IDToken string
}

// resultFromToken builds a Result from an x/oauth2 token.
func resultFromToken(tok *oauth2.Token) (*Result, error) {
	if tok.AccessToken == "" {
		return nil, errors.New("token response contained no access token")
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		var err error
		expiresAt, err = expiryFromJWT(tok.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{
		AccessToken:  tok.AccessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		res.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		res.IDToken = idToken
	}
	return res, nil
}

// resultFromResponse builds a Result from a raw token endpoint response.
func resultFromResponse(tr *oauthmodel.TokenResponse, now time.Time) (*Result, error) {
	accessToken := utils.Value(tr.AccessToken)
	if accessToken == "" {
		return nil, errors.New("token response contained no access token")
	}

	var expiresAt time.Time
	if tr.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else {
		var err error
		expiresAt, err = expiryFromJWT(accessToken)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: utils.Value(tr.RefreshToken),
		Scope:        tr.Scope,
		IDToken:      utils.Value(tr.IdToken),
	}, nil
}

// expiryFromJWT extracts the exp claim from a JWT access token. Used when the
// issuer omits expires_in; the claim is read without signature verification
// because the agent is the token's client, not its audience.
func expiryFromJWT(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "token has no expires_in and is not a parseable JWT")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("token has no expires_in and no exp claim")
	}
	return exp.Time, nil
}
