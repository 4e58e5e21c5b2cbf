package flow_test

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oidc-agent/account"
	"github.com/jrsteele09/go-oidc-agent/flow"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/secrets"
	"github.com/jrsteele09/go-oidc-agent/transport"
)

func newRunner(t *testing.T, now time.Time) *flow.Runner {
	t.Helper()
	pool, err := transport.NewPool(transport.Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	runner, err := flow.NewRunner(pool, flow.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)
	return runner
}

func issuerAccount(serverURL string) *account.Account {
	return &account.Account{
		Name:         "acct",
		ClientID:     "client-1",
		ClientSecret: secrets.New("secret-1"),
		Issuer: account.Issuer{
			URL:           serverURL,
			TokenEndpoint: serverURL + "/token",
		},
	}
}

func TestDeviceFlowSingleLookup(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
	}))
	defer server.Close()

	now := time.Now()
	runner := newRunner(t, now)

	_, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.ErrorIs(t, err, agenterrors.ErrAuthorizationPending)
	require.Equal(t, 1, hits, "one lookup per call, no internal polling")
}

func TestDeviceFlowSlowDownIsAlsoPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "slow_down"})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	_, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.ErrorIs(t, err, agenterrors.ErrAuthorizationPending)
}

func TestExchangeComputesExpiryFromExpiresIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"token_type":   "bearer",
			"expires_in":   900,
		})
	}))
	defer server.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runner := newRunner(t, now)

	result, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.NoError(t, err)
	require.Equal(t, "token-1", result.AccessToken)
	require.Equal(t, now.Add(900*time.Second), result.ExpiresAt)
}

func TestExchangeFallsBackToJWTExpiry(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "user-1",
	}).SignedString([]byte("signing-key"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "bearer",
		})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	result, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.NoError(t, err)
	require.True(t, result.ExpiresAt.Equal(exp), "expiry must come from the exp claim")
}

func TestExchangeWithoutAnyExpiryFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "opaque-token-with-no-expiry",
			"token_type":   "bearer",
		})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	_, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.ErrorIs(t, err, agenterrors.ErrTokenExchange)
}

func TestRefreshRotationDetected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "token-2",
			"token_type":    "bearer",
			"expires_in":    900,
			"refresh_token": "rotated",
		})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	acct := issuerAccount(server.URL)
	acct.SetRefreshToken("original")

	result, err := runner.Refresh(context.Background(), acct, "")
	require.NoError(t, err)
	require.Equal(t, "rotated", result.RefreshToken)
	require.Equal(t, "original", acct.RefreshToken.Value(), "flows never mutate the account")
}

func TestRefreshUnchangedTokenIsNotARotation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "token-2",
			"token_type":    "bearer",
			"expires_in":    900,
			"refresh_token": "original",
		})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	acct := issuerAccount(server.URL)
	acct.SetRefreshToken("original")

	result, err := runner.Refresh(context.Background(), acct, "")
	require.NoError(t, err)
	require.Empty(t, result.RefreshToken)
}

func TestAuthCodeFallsBackToConfiguredRedirectURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "http://localhost:8080/callback", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"token_type":   "bearer",
			"expires_in":   900,
		})
	}))
	defer server.Close()

	runner := newRunner(t, time.Now())
	acct := issuerAccount(server.URL)
	acct.RedirectURIs = []string{"http://localhost:8080/callback", "http://localhost:9090/alt"}

	result, err := runner.AuthCode(context.Background(), acct, "code-1", "", "verifier-1")
	require.NoError(t, err)
	require.Equal(t, "token-1", result.AccessToken)
}

func TestExchangeUsesAccountCertPath(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"token_type":   "bearer",
			"expires_in":   900,
		})
	}))
	defer server.Close()

	certPath := filepath.Join(t.TempDir(), "issuer-ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))

	runner := newRunner(t, time.Now())

	// The default transport does not trust the issuer's self-signed chain.
	_, err := runner.Device(context.Background(), issuerAccount(server.URL), "device-1")
	require.ErrorIs(t, err, agenterrors.ErrTokenExchange)

	pinned := issuerAccount(server.URL)
	pinned.CertPath = certPath
	result, err := runner.Device(context.Background(), pinned, "device-1")
	require.NoError(t, err)
	require.Equal(t, "token-1", result.AccessToken)
}
