// Package tokens implements the token acquisition engine: given an account
// and a caller's requirements it decides whether the cached access token
// suffices, and if not which grant flow to run, then maintains the account's
// in-memory token state.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oidc-agent/account"
	"github.com/jrsteele09/go-oidc-agent/flow"
	"github.com/jrsteele09/go-oidc-agent/internal/agentlock"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/internal/utils"
	"github.com/jrsteele09/go-oidc-agent/ipc"
	"github.com/jrsteele09/go-oidc-agent/issuer"
)

// ForceNewToken is the sentinel minimum-validity period demanding a brand-new
// token regardless of cache state.
const ForceNewToken time.Duration = -1

// TokenRequest is the per-request, ephemeral context for Acquire: the
// caller's validity requirement, optional scope override and the
// flow-specific inputs for the code and device flows.
type TokenRequest struct {
	// MinValidPeriod is the minimum remaining validity the caller requires,
	// or ForceNewToken.
	MinValidPeriod time.Duration

	// Scope optionally overrides the account's configured scope.
	Scope string

	// AuthCode, RedirectURI and CodeVerifier feed the authorization-code
	// flow. RedirectURI must exactly match the URI used to obtain AuthCode.
	AuthCode     string
	RedirectURI  string
	CodeVerifier string

	// DeviceCode feeds the device flow.
	DeviceCode string
}

// AcquisitionService orchestrates validity decisions, flow dispatch and cache
// updates. It is synchronous: one acquisition blocks on at most a metadata
// fetch plus one token-endpoint round trip. It never retains an account
// beyond the call; serialising concurrent acquisitions against the same
// account is the embedding agent's responsibility (account.Repo.WithLock).
type AcquisitionService struct {
	flows    *flow.Runner
	resolver *issuer.Resolver
	lock     *agentlock.Guard
	nowTime  func() time.Time
}

// AcquisitionServiceOption modifies an AcquisitionService.
type AcquisitionServiceOption func(*AcquisitionService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AcquisitionServiceOption {
	return func(s *AcquisitionService) {
		s.nowTime = nowFunc
	}
}

// WithLockGuard makes every acquisition honour the agent lock.
func WithLockGuard(guard *agentlock.Guard) AcquisitionServiceOption {
	return func(s *AcquisitionService) {
		s.lock = guard
	}
}

// NewAcquisitionService initializes the engine with its collaborators.
func NewAcquisitionService(flows *flow.Runner, resolver *issuer.Resolver, options ...AcquisitionServiceOption) (*AcquisitionService, error) {
	if flows == nil {
		return nil, errors.New("[NewAcquisitionService] flow runner is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewAcquisitionService] issuer resolver is required")
	}

	service := &AcquisitionService{
		flows:    flows,
		resolver: resolver,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// AcquireViaRefresh returns an access token for the account, serving it from
// cache when the cached token satisfies minValid, otherwise running the
// refresh flow.
//
// The cache is consulted only when no scope override is requested and
// minValid is not ForceNewToken. A cache hit performs no network activity.
// On a miss, a missing refresh token fails with ErrNoRefreshToken before any
// network call; a flow failure propagates unchanged and leaves the cached
// token untouched.
func (s *AcquisitionService) AcquireViaRefresh(ctx context.Context, acct *account.Account, minValid time.Duration, scopeOverride string, pipe ipc.Pipe) (string, error) {
	if err := s.checkUnlocked(); err != nil {
		return "", err
	}

	if scopeOverride == "" && minValid != ForceNewToken &&
		acct.AccessTokenIsSet() && acct.TokenIsValidFor(s.nowTime(), minValid) {
		log.Debug().Str("account", acct.Name).Msg("returning cached access token")
		return acct.AccessToken(), nil
	}
	log.Debug().Str("account", acct.Name).Msg("no access token valid long enough, trying refresh flow")

	if !acct.RefreshTokenIsValid() {
		log.Debug().Str("account", acct.Name).Msg("no refresh token found")
		return "", agenterrors.ErrNoRefreshToken
	}

	if err := s.ensureMetadata(ctx, acct); err != nil {
		return "", err
	}

	result, err := s.flows.Refresh(ctx, acct, scopeOverride)
	if err != nil {
		return "", err
	}
	s.applyResult(acct, result, pipe)
	return result.AccessToken, nil
}

// AcquireViaPassword fills an empty token cache using the
// resource-owner-password flow. A cached access token short-circuits to
// success without any validity check; this asymmetry with the refresh path
// is deliberate and preserved. A missing password is requested from the pipe
// peer, which collects it from the user.
func (s *AcquisitionService) AcquireViaPassword(ctx context.Context, acct *account.Account, pipe ipc.Pipe) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}

	if acct.AccessTokenIsSet() {
		return nil
	}

	log.Debug().Str("account", acct.Name).Msg("trying password flow")
	if !utils.StrValid(acct.Username) {
		log.Debug().Str("account", acct.Name).Msg("no credentials found")
		return agenterrors.ErrMissingCredentials
	}
	if !acct.Password.IsSet() {
		if err := s.promptPassword(acct, pipe); err != nil {
			return err
		}
	}

	if err := s.ensureMetadata(ctx, acct); err != nil {
		return err
	}

	result, err := s.flows.Password(ctx, acct)
	if err != nil {
		return err
	}
	s.applyResult(acct, result, pipe)
	return nil
}

// AcquireViaAuthCode exchanges an authorization code (plus PKCE verifier and
// the redirect URI used to obtain it) for tokens. A cached access token
// short-circuits to success.
func (s *AcquisitionService) AcquireViaAuthCode(ctx context.Context, acct *account.Account, code, usedRedirectURI, codeVerifier string, pipe ipc.Pipe) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}

	if acct.AccessTokenIsSet() {
		return nil
	}

	log.Debug().Str("account", acct.Name).Msg("trying authorization code exchange")
	if err := s.ensureMetadata(ctx, acct); err != nil {
		return err
	}

	result, err := s.flows.AuthCode(ctx, acct, code, usedRedirectURI, codeVerifier)
	if err != nil {
		return err
	}
	s.applyResult(acct, result, pipe)
	return nil
}

// AcquireViaDevice performs one token-endpoint lookup for a device code.
// ErrAuthorizationPending surfaces unchanged as a retriable outcome; polling
// through repeated calls is the caller's responsibility. A cached access
// token short-circuits to success.
func (s *AcquisitionService) AcquireViaDevice(ctx context.Context, acct *account.Account, deviceCode string, pipe ipc.Pipe) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}

	if acct.AccessTokenIsSet() {
		return nil
	}

	log.Debug().Str("account", acct.Name).Msg("looking up device code")
	if err := s.ensureMetadata(ctx, acct); err != nil {
		return err
	}

	result, err := s.flows.Device(ctx, acct, deviceCode)
	if err != nil {
		return err
	}
	s.applyResult(acct, result, pipe)
	return nil
}

// Acquire walks the account's configured flow order (or the default order)
// and tries each flow in turn with the request's inputs until one yields a
// token. Unknown flow names in the order fail the call with ErrUnknownFlow.
// When every flow fails, the last failure is returned.
func (s *AcquisitionService) Acquire(ctx context.Context, acct *account.Account, req TokenRequest, pipe ipc.Pipe) (string, error) {
	if err := s.checkUnlocked(); err != nil {
		return "", err
	}

	order, err := flow.ParseOrder(acct.FlowSpec)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, name := range order {
		kind, err := flow.KindFromName(name)
		if err != nil {
			return "", err
		}

		switch kind {
		case flow.KindRefresh:
			token, err := s.AcquireViaRefresh(ctx, acct, req.MinValidPeriod, req.Scope, pipe)
			if err != nil {
				lastErr = err
				continue
			}
			return token, nil
		case flow.KindPassword:
			if err := s.AcquireViaPassword(ctx, acct, pipe); err != nil {
				lastErr = err
				continue
			}
			return acct.AccessToken(), nil
		case flow.KindCode:
			if req.AuthCode == "" {
				lastErr = errors.Wrap(agenterrors.ErrMissingCredentials, "no authorization code supplied")
				continue
			}
			if err := s.AcquireViaAuthCode(ctx, acct, req.AuthCode, req.RedirectURI, req.CodeVerifier, pipe); err != nil {
				lastErr = err
				continue
			}
			return acct.AccessToken(), nil
		case flow.KindDevice:
			if req.DeviceCode == "" {
				lastErr = errors.Wrap(agenterrors.ErrMissingCredentials, "no device code supplied")
				continue
			}
			if err := s.AcquireViaDevice(ctx, acct, req.DeviceCode, pipe); err != nil {
				lastErr = err
				continue
			}
			return acct.AccessToken(), nil
		}
	}

	if lastErr == nil {
		lastErr = agenterrors.ErrUnknownFlow
	}
	return "", lastErr
}

// promptPassword asks the pipe peer for the account's password and stores it
// in the in-memory record for the flow to use. Without a peer, or when the
// peer cannot supply one, the password flow has no credentials to run with.
func (s *AcquisitionService) promptPassword(acct *account.Account, pipe ipc.Pipe) error {
	if pipe == nil {
		log.Debug().Str("account", acct.Name).Msg("no password stored and no peer to prompt")
		return agenterrors.ErrMissingCredentials
	}

	value, err := ipc.Prompt(pipe, fmt.Sprintf("Password for account %s:", acct.Name), true)
	if err != nil {
		return fmt.Errorf("%w: prompting for password: %w", agenterrors.ErrMissingCredentials, err)
	}
	if !utils.StrValid(value) {
		return agenterrors.ErrMissingCredentials
	}
	acct.Password.Replace(value)
	return nil
}

// ensureMetadata resolves the issuer's endpoints if they are not known yet:
// at most one extra round trip per acquisition.
func (s *AcquisitionService) ensureMetadata(ctx context.Context, acct *account.Account) error {
	if acct.Issuer.Resolved() {
		return nil
	}
	return s.resolver.Resolve(ctx, acct)
}

// applyResult commits a confirmed flow success to the account: the cached
// token is replaced (old buffer wiped) and a rotated refresh token is stored
// and announced to the pipe peer for re-encryption. Failures never reach
// here, so a failed acquisition leaves the previous cache untouched.
func (s *AcquisitionService) applyResult(acct *account.Account, result *flow.Result, pipe ipc.Pipe) {
	acct.SetCachedToken(result.AccessToken, result.ExpiresAt)

	if result.RefreshToken != "" && result.RefreshToken != acct.RefreshToken.Value() {
		acct.SetRefreshToken(result.RefreshToken)
		if err := ipc.NotifyAccountUpdate(pipe, acct.Name); err != nil {
			log.Warn().Err(err).Str("account", acct.Name).Msg("failed to notify peer of refresh token rotation")
		}
	}
}

func (s *AcquisitionService) checkUnlocked() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.CheckUnlocked()
}
