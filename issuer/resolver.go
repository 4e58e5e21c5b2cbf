// Package issuer resolves OpenID provider metadata for an account.
package issuer

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oidc-agent/account"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/transport"
)

// ConfigEndpointSuffix is the fixed well-known path appended to an issuer URL
// to locate its discovery document.
const ConfigEndpointSuffix = "/.well-known/openid-configuration"

// Resolver fetches and parses OpenID discovery documents. It is stateless and
// idempotent: resolving the same issuer twice simply overwrites previously
// discovered metadata. Callers avoid redundant calls by checking
// Issuer.Resolved first.
type Resolver struct {
	clients *transport.Pool
}

// NewResolver creates a resolver drawing HTTP clients from the given pool so
// accounts with a pinned certificate are fetched over a transport trusting it.
func NewResolver(clients *transport.Pool) (*Resolver, error) {
	if clients == nil {
		return nil, errors.New("[issuer.NewResolver] transport pool is required")
	}
	return &Resolver{clients: clients}, nil
}

// discoveryClaims are the fields pulled from the discovery document beyond
// what go-oidc exposes through Endpoint().
type discoveryClaims struct {
	AuthorizationEndpoint       string   `json:"authorization_endpoint"`
	TokenEndpoint               string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint string   `json:"device_authorization_endpoint"`
	ScopesSupported             []string `json:"scopes_supported"`
}

// Resolve fetches the discovery document for the account's issuer and
// populates the account's Issuer fields. A failed fetch surfaces the
// underlying error wrapped in ErrMetadataFetch; a malformed body surfaces a
// parse error.
func (r *Resolver) Resolve(ctx context.Context, acct *account.Account) error {
	issuerURL := strings.TrimSuffix(acct.Issuer.URL, "/")
	if issuerURL == "" {
		return errors.Wrap(agenterrors.ErrMetadataFetch, "[issuer.Resolve] issuer url is empty")
	}

	configEndpoint := issuerURL + ConfigEndpointSuffix
	log.Debug().Str("account", acct.Name).Str("endpoint", configEndpoint).Msg("fetching issuer configuration")

	httpClient, err := r.clients.For(acct.CertPath)
	if err != nil {
		return fmt.Errorf("%w: issuer %s: %w", agenterrors.ErrMetadataFetch, issuerURL, err)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient.HTTPClient()), issuerURL)
	if err != nil {
		return fmt.Errorf("%w: issuer %s: %w", agenterrors.ErrMetadataFetch, issuerURL, err)
	}

	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return fmt.Errorf("%w: issuer %s: %w", agenterrors.ErrMalformedMetadata, issuerURL, err)
	}
	if claims.TokenEndpoint == "" {
		return errors.Wrapf(agenterrors.ErrMalformedMetadata, "issuer %s: no token endpoint", issuerURL)
	}

	acct.Issuer.ConfigurationEndpoint = configEndpoint
	acct.Issuer.AuthorizationEndpoint = claims.AuthorizationEndpoint
	acct.Issuer.TokenEndpoint = claims.TokenEndpoint
	acct.Issuer.DeviceAuthorizationEndpoint = claims.DeviceAuthorizationEndpoint
	acct.Issuer.ScopesSupported = claims.ScopesSupported

	log.Debug().Str("account", acct.Name).Str("token_endpoint", claims.TokenEndpoint).Msg("issuer configuration resolved")
	return nil
}

// ScopesSupported resolves the issuer at issuerURL and returns the scopes it
// advertises. Secrets never enter the temporary account record.
func (r *Resolver) ScopesSupported(ctx context.Context, issuerURL string) ([]string, error) {
	acct := &account.Account{Issuer: account.Issuer{URL: issuerURL}}
	if err := r.Resolve(ctx, acct); err != nil {
		return nil, err
	}
	return acct.Issuer.ScopesSupported, nil
}
