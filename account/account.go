// Package account defines the central Account entity: an OIDC client
// configuration plus its volatile token state. Accounts arrive here already
// decrypted (the encrypted store is a separate collaborator) and are wiped
// before they are dropped.
package account

import (
	"time"

	"github.com/jrsteele09/go-oidc-agent/secrets"
)

// Issuer holds the authorization server's base URL and the endpoints
// discovered from its OpenID configuration document.
type Issuer struct {
	// URL is the issuer base URL, e.g. "https://login.example.com".
	URL string `yaml:"url"`

	// ConfigurationEndpoint is the discovery document URL derived from URL.
	ConfigurationEndpoint string `yaml:"-"`

	// AuthorizationEndpoint is where browsers are sent for the code flow.
	AuthorizationEndpoint string `yaml:"-"`

	// TokenEndpoint is where every grant exchange is posted.
	TokenEndpoint string `yaml:"-"`

	// DeviceAuthorizationEndpoint issues device/user codes (RFC 8628).
	DeviceAuthorizationEndpoint string `yaml:"-"`

	// ScopesSupported lists the scopes the issuer advertises.
	ScopesSupported []string `yaml:"-"`
}

// Resolved reports whether the token endpoint has been discovered.
func (i Issuer) Resolved() bool {
	return i.TokenEndpoint != ""
}

// Account is an OIDC account configuration together with its in-memory token
// state. The cached access token fields are volatile: they are mutated only
// by the acquisition service during a flow and are never persisted.
//
// Concurrent acquisitions against the same account must be serialised by the
// embedding agent (see Repo.WithLock); two concurrent refreshes could both
// consume a single-use rotating refresh token.
type Account struct {
	// Name identifies the account within the agent.
	Name string `yaml:"name"`

	// ClientID and ClientSecret are the registered OAuth2 client credentials.
	ClientID     string         `yaml:"client_id"`
	ClientSecret secrets.Secret `yaml:"client_secret"`

	// Issuer is the authorization server configuration.
	Issuer Issuer `yaml:"issuer"`

	// Scope is the default space-separated scope string for token requests.
	Scope string `yaml:"scope"`

	// RedirectURIs are the registered redirect URIs for the code flow.
	RedirectURIs []string `yaml:"redirect_uris"`

	// Username and Password support the resource-owner-password flow.
	Username string         `yaml:"username"`
	Password secrets.Secret `yaml:"password"`

	// RefreshToken is the stored long-term refresh token, if any.
	RefreshToken secrets.Secret `yaml:"refresh_token"`

	// CertPath optionally pins the trust anchors used for this issuer.
	CertPath string `yaml:"cert_path"`

	// FlowSpec is the configured flow preference: empty for the default
	// order, a bare flow name, or a JSON array of flow names.
	FlowSpec string `yaml:"flow"`

	accessToken secrets.Secret
	expiresAt   time.Time
}

// AccessToken returns the cached access token, or "" if none is cached.
func (a *Account) AccessToken() string {
	return a.accessToken.Value()
}

// AccessTokenIsSet reports whether an access token is cached.
func (a *Account) AccessTokenIsSet() bool {
	return a.accessToken.IsSet()
}

// ExpiresAt returns the cached token's absolute expiry.
func (a *Account) ExpiresAt() time.Time {
	return a.expiresAt
}

// SetCachedToken replaces the cached access token and its expiry.
// The previous token's buffer is wiped before the new value is installed.
func (a *Account) SetCachedToken(token string, expiresAt time.Time) {
	a.accessToken.Replace(token)
	a.expiresAt = expiresAt
}

// TokenIsValidFor reports whether the cached access token is valid for at
// least minValid beyond now. Both comparisons are strict: a token expiring
// exactly minValid from now does not qualify, leaving headroom for clock and
// network latency.
func (a *Account) TokenIsValidFor(now time.Time, minValid time.Duration) bool {
	remaining := a.expiresAt.Sub(now)
	return remaining > 0 && remaining > minValid
}

// RefreshTokenIsValid reports whether a usable refresh token is stored.
func (a *Account) RefreshTokenIsValid() bool {
	return a.RefreshToken.IsSet()
}

// SetRefreshToken replaces the stored refresh token, wiping the old one.
// Used when the issuer rotates refresh tokens.
func (a *Account) SetRefreshToken(token string) {
	a.RefreshToken.Replace(token)
}

// Credentials returns the stored username and password value.
func (a *Account) Credentials() (string, string) {
	return a.Username, a.Password.Value()
}

// Wipe zeroes every secret field. Called when an account is unloaded or the
// agent shuts down; after Wipe the account must not be used again.
func (a *Account) Wipe() {
	a.ClientSecret.Wipe()
	a.Password.Wipe()
	a.RefreshToken.Wipe()
	a.accessToken.Wipe()
	a.expiresAt = time.Time{}
}
