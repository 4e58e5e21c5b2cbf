package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oidc-agent/account"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/oauthmodel"
	"github.com/jrsteele09/go-oidc-agent/transport"
)

// Runner executes grant flows against an issuer's token endpoint. Each flow
// is one protocol exchange: no retries, no polling, no account mutation.
// Accounts with a pinned certificate run over a transport trusting it.
type Runner struct {
	clients *transport.Pool
	nowTime func() time.Time
}

// RunnerOption modifies a Runner.
type RunnerOption func(*Runner)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.nowTime = nowFunc
	}
}

// NewRunner creates a flow runner drawing HTTP clients from the given pool.
func NewRunner(clients *transport.Pool, options ...RunnerOption) (*Runner, error) {
	if clients == nil {
		return nil, errors.New("[flow.NewRunner] transport pool is required")
	}
	r := &Runner{
		clients: clients,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// oauthConfig builds the x/oauth2 configuration for an account. The issuer
// metadata must already be resolved.
func oauthConfig(acct *account.Account) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     acct.ClientID,
		ClientSecret: acct.ClientSecret.Value(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  acct.Issuer.AuthorizationEndpoint,
			TokenURL: acct.Issuer.TokenEndpoint,
		},
		Scopes: strings.Fields(acct.Scope),
	}
}

// clientContext binds x/oauth2 calls to the account's transport so cert
// pinning and timeouts apply to every exchange.
func (r *Runner) clientContext(ctx context.Context, acct *account.Account) (context.Context, error) {
	httpClient, err := r.clients.For(acct.CertPath)
	if err != nil {
		return nil, errors.Wrap(err, "[flow] building transport for account")
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient.HTTPClient()), nil
}

// Refresh exchanges the account's stored refresh token for a new access
// token, optionally narrowing the scope. The caller must have checked that a
// refresh token is present.
func (r *Runner) Refresh(ctx context.Context, acct *account.Account, scopeOverride string) (*Result, error) {
	refreshToken := acct.RefreshToken.Value()

	// x/oauth2 cannot attach a scope parameter to a refresh grant, so a
	// narrowed refresh posts the form directly.
	if scopeOverride != "" {
		params := url.Values{}
		params.Set("grant_type", string(oauthmodel.RefreshTokenGrant))
		params.Set("refresh_token", refreshToken)
		params.Set("scope", scopeOverride)
		return r.exchange(ctx, acct, params)
	}

	ctx, err := r.clientContext(ctx, acct)
	if err != nil {
		return nil, err
	}
	cfg := oauthConfig(acct)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, translateTokenError(err)
	}

	res, err := resultFromToken(tok)
	if err != nil {
		return nil, errors.Wrap(err, "[flow.Refresh]")
	}
	// An unchanged refresh token is not a rotation.
	if res.RefreshToken == refreshToken {
		res.RefreshToken = ""
	}
	return res, nil
}

// Password runs the resource-owner-password-credentials grant. Credentials
// are read from the account and never logged.
func (r *Runner) Password(ctx context.Context, acct *account.Account) (*Result, error) {
	ctx, err := r.clientContext(ctx, acct)
	if err != nil {
		return nil, err
	}
	username, password := acct.Credentials()
	cfg := oauthConfig(acct)
	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, translateTokenError(err)
	}
	res, err := resultFromToken(tok)
	if err != nil {
		return nil, errors.Wrap(err, "[flow.Password]")
	}
	return res, nil
}

// AuthCode exchanges an authorization code, its PKCE verifier and the exact
// redirect URI presented during authorization for tokens. An empty
// redirectURI falls back to the account's first configured redirect URI.
func (r *Runner) AuthCode(ctx context.Context, acct *account.Account, code, redirectURI, codeVerifier string) (*Result, error) {
	if redirectURI == "" && len(acct.RedirectURIs) > 0 {
		redirectURI = acct.RedirectURIs[0]
	}

	ctx, err := r.clientContext(ctx, acct)
	if err != nil {
		return nil, err
	}
	cfg := oauthConfig(acct)
	cfg.RedirectURL = redirectURI

	opts := []oauth2.AuthCodeOption{}
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, translateTokenError(err)
	}
	res, err := resultFromToken(tok)
	if err != nil {
		return nil, errors.Wrap(err, "[flow.AuthCode]")
	}
	return res, nil
}

// Device performs one token-endpoint lookup for a previously issued device
// code. "authorization_pending" and "slow_down" surface as
// ErrAuthorizationPending: an expected, retriable outcome. Polling is the
// caller's responsibility, one lookup per call.
func (r *Runner) Device(ctx context.Context, acct *account.Account, deviceCode string) (*Result, error) {
	params := url.Values{}
	params.Set("grant_type", string(oauthmodel.DeviceCodeGrant))
	params.Set("device_code", deviceCode)
	return r.exchange(ctx, acct, params)
}

// exchange posts grant parameters to the token endpoint through the
// transport capability and decodes the standard response.
func (r *Runner) exchange(ctx context.Context, acct *account.Account, params url.Values) (*Result, error) {
	params.Set("client_id", acct.ClientID)
	if acct.ClientSecret.IsSet() {
		params.Set("client_secret", acct.ClientSecret.Value())
	}

	httpClient, err := r.clients.For(acct.CertPath)
	if err != nil {
		return nil, errors.Wrap(err, "[flow] building transport for account")
	}
	body, err := httpClient.PostForm(ctx, acct.Issuer.TokenEndpoint, params)
	if err != nil {
		return nil, translateExchangeError(err)
	}

	var tr oauthmodel.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", agenterrors.ErrTokenExchange, err)
	}

	res, err := resultFromResponse(&tr, r.nowTime())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agenterrors.ErrTokenExchange, err)
	}
	return res, nil
}

// translateExchangeError classifies a failed transport POST: OAuth error
// bodies become either the pending sentinel or a token exchange failure.
func translateExchangeError(err error) error {
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		var oauthErr oauthmodel.ErrorResponse
		if json.Unmarshal(statusErr.Body, &oauthErr) == nil && oauthErr.Error != "" {
			if oauthErr.Pending() {
				return fmt.Errorf("%w: %s", agenterrors.ErrAuthorizationPending, oauthErr.Error)
			}
			return fmt.Errorf("%w: %s: %s", agenterrors.ErrTokenExchange, oauthErr.Error, oauthErr.ErrorDescription)
		}
	}
	return fmt.Errorf("%w: %w", agenterrors.ErrTokenExchange, err)
}

// translateTokenError does the same for errors out of x/oauth2.
func translateTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == oauthmodel.ErrorCodeAuthorizationPending ||
			retrieveErr.ErrorCode == oauthmodel.ErrorCodeSlowDown {
			return fmt.Errorf("%w: %s", agenterrors.ErrAuthorizationPending, retrieveErr.ErrorCode)
		}
		return fmt.Errorf("%w: %s: %s", agenterrors.ErrTokenExchange, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	}
	return fmt.Errorf("%w: %w", agenterrors.ErrTokenExchange, err)
}
