package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oidc-agent/internal/config"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/issuer"
)

func TestBuildAgent(t *testing.T) {
	t.Setenv("CERT_PATH", "")

	a, err := buildAgent(config.New())
	require.NoError(t, err)
	require.NotNil(t, a.repo)
	require.NotNil(t, a.engine)
	require.NotNil(t, a.resolver)
	require.NotNil(t, a.lock)
}

func TestNewPeerPipeHonoursConfiguredTimeout(t *testing.T) {
	t.Setenv("PIPE_TIMEOUT_SECONDS", "1")

	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	pipe := newPeerPipe(config.New(), r, io.Discard)
	t.Cleanup(func() { _ = pipe.Close() })

	start := time.Now()
	_, err := pipe.Receive()
	require.ErrorIs(t, err, agenterrors.ErrPipeTimeout)
	require.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestLookupScopes(t *testing.T) {
	t.Setenv("CERT_PATH", "")

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(issuer.ConfigEndpointSuffix, func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"issuer":           server.URL,
			"token_endpoint":   server.URL + "/token",
			"jwks_uri":         server.URL + "/jwks",
			"scopes_supported": []string{"openid", "offline_access"},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	scopes, err := lookupScopes(config.New(), server.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "offline_access"}, scopes)
}
