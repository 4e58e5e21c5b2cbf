package oauthmodel

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format defined in RFC 6749,
// as seen from the client side of the exchange.
type TokenResponse struct {
	// AccessToken is the short-lived token used to access protected resources.
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token with the user's identity claims.
	// Only present when the "openid" scope was requested.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to present the access token (normally "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds, relative to issuance.
	// Issuers may omit it; the JWT's "exp" claim is the fallback.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is the long-lived token used to obtain new access tokens.
	// Issuers may rotate it on every refresh; a present value here always
	// supersedes the one the request was made with.
	// Security: store only in wipeable buffers, never log.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of granted scopes.
	// May be narrower than what was requested.
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the RFC 6749 error body returned by a token endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// Device flow error codes from RFC 8628 that signal "try again later"
// rather than a terminal failure.
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
)

// Pending reports whether the error is a retriable device-flow state.
func (e ErrorResponse) Pending() bool {
	return e.Error == ErrorCodeAuthorizationPending || e.Error == ErrorCodeSlowDown
}
