package oauthmodel

// GrantType represents the OAuth 2.0 grant type sent to the token endpoint.
// Determines which credentials accompany the request.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Authorization Code Flow (with PKCE for public clients)
	// Token request includes: code, client_id, redirect_uri, code_verifier
	// Returns: access_token, id_token, refresh_token (if offline_access)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Used in: Token refresh (get a new access token without user interaction)
	// Token request includes: refresh_token, client_id, optionally scope
	// Returns: new access_token and possibly a rotated refresh_token
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	// Used in: Resource Owner Password Credentials Flow
	// Token request includes: username, password, client_id, scope
	// Security: Credentials pass through the client; never log them
	PasswordGrant GrantType = "password"

	// DeviceCodeGrant looks up token issuance for a device code.
	// Used in: Device Authorization Flow (RFC 8628)
	// Token request includes: device_code, client_id
	// The issuer answers "authorization_pending" until the user approves.
	DeviceCodeGrant GrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// Flow identifier tokens exchanged with callers and configuration.
// These are the external names; short aliases used inside flow-order lists
// are resolved by the flow package.
const (
	FlowNameRefresh  = "refresh_token"
	FlowNamePassword = "password"
	FlowNameCode     = "authorization_code"
	FlowNameDevice   = "device"
)
