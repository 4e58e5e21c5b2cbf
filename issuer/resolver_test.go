package issuer_test

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oidc-agent/account"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/issuer"
	"github.com/jrsteele09/go-oidc-agent/transport"
)

// discoveryServer serves a discovery document whose issuer field matches the
// server's own URL, which go-oidc insists on.
func discoveryServer(t *testing.T, mutate func(doc map[string]any)) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(issuer.ConfigEndpointSuffix, func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"issuer":                        server.URL,
			"authorization_endpoint":        server.URL + "/authorize",
			"token_endpoint":                server.URL + "/token",
			"device_authorization_endpoint": server.URL + "/device",
			"jwks_uri":                      server.URL + "/jwks",
			"scopes_supported":              []string{"openid", "profile", "offline_access"},
		}
		if mutate != nil {
			mutate(doc)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newResolver(t *testing.T) *issuer.Resolver {
	t.Helper()
	pool, err := transport.NewPool(transport.Options{})
	require.NoError(t, err)
	resolver, err := issuer.NewResolver(pool)
	require.NoError(t, err)
	return resolver
}

func TestResolvePopulatesIssuer(t *testing.T) {
	server := discoveryServer(t, nil)
	resolver := newResolver(t)

	acct := &account.Account{Name: "work", Issuer: account.Issuer{URL: server.URL + "/"}}
	require.False(t, acct.Issuer.Resolved())

	require.NoError(t, resolver.Resolve(context.Background(), acct))

	require.True(t, acct.Issuer.Resolved())
	require.Equal(t, server.URL+issuer.ConfigEndpointSuffix, acct.Issuer.ConfigurationEndpoint)
	require.Equal(t, server.URL+"/authorize", acct.Issuer.AuthorizationEndpoint)
	require.Equal(t, server.URL+"/token", acct.Issuer.TokenEndpoint)
	require.Equal(t, server.URL+"/device", acct.Issuer.DeviceAuthorizationEndpoint)
	require.Equal(t, []string{"openid", "profile", "offline_access"}, acct.Issuer.ScopesSupported)
}

func TestResolveWithoutDeviceEndpoint(t *testing.T) {
	server := discoveryServer(t, func(doc map[string]any) {
		delete(doc, "device_authorization_endpoint")
	})
	resolver := newResolver(t)

	acct := &account.Account{Issuer: account.Issuer{URL: server.URL}}
	require.NoError(t, resolver.Resolve(context.Background(), acct))
	require.Empty(t, acct.Issuer.DeviceAuthorizationEndpoint)
	require.True(t, acct.Issuer.Resolved())
}

func TestResolveMissingTokenEndpoint(t *testing.T) {
	server := discoveryServer(t, func(doc map[string]any) {
		delete(doc, "token_endpoint")
	})
	resolver := newResolver(t)

	acct := &account.Account{Issuer: account.Issuer{URL: server.URL}}
	err := resolver.Resolve(context.Background(), acct)
	require.ErrorIs(t, err, agenterrors.ErrMalformedMetadata)
	require.False(t, acct.Issuer.Resolved())
}

func TestResolveFetchFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(issuer.ConfigEndpointSuffix, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	resolver := newResolver(t)

	acct := &account.Account{Issuer: account.Issuer{URL: server.URL}}
	err := resolver.Resolve(context.Background(), acct)
	require.ErrorIs(t, err, agenterrors.ErrMetadataFetch)
}

func TestResolveEmptyIssuerURL(t *testing.T) {
	resolver := newResolver(t)

	err := resolver.Resolve(context.Background(), &account.Account{})
	require.ErrorIs(t, err, agenterrors.ErrMetadataFetch)
}

func TestResolveUsesAccountCertPath(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(issuer.ConfigEndpointSuffix, func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"issuer":         server.URL,
			"token_endpoint": server.URL + "/token",
			"jwks_uri":       server.URL + "/jwks",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	server = httptest.NewTLSServer(mux)
	t.Cleanup(server.Close)

	certPath := filepath.Join(t.TempDir(), "issuer-ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))

	resolver := newResolver(t)

	// Without the pinned certificate the default transport rejects the
	// issuer's self-signed chain.
	untrusted := &account.Account{Issuer: account.Issuer{URL: server.URL}}
	require.ErrorIs(t, resolver.Resolve(context.Background(), untrusted), agenterrors.ErrMetadataFetch)

	pinned := &account.Account{
		CertPath: certPath,
		Issuer:   account.Issuer{URL: server.URL},
	}
	require.NoError(t, resolver.Resolve(context.Background(), pinned))
	require.Equal(t, server.URL+"/token", pinned.Issuer.TokenEndpoint)
}

func TestResolveBadAccountCertPath(t *testing.T) {
	server := discoveryServer(t, nil)
	resolver := newResolver(t)

	acct := &account.Account{
		CertPath: filepath.Join(t.TempDir(), "missing.pem"),
		Issuer:   account.Issuer{URL: server.URL},
	}
	require.ErrorIs(t, resolver.Resolve(context.Background(), acct), agenterrors.ErrMetadataFetch)
}

func TestScopesSupported(t *testing.T) {
	server := discoveryServer(t, nil)
	resolver := newResolver(t)

	scopes, err := resolver.ScopesSupported(context.Background(), server.URL)
	require.NoError(t, err)
	require.Contains(t, scopes, "offline_access")
}
