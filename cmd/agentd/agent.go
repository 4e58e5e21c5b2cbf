package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-oidc-agent/account"
	"github.com/jrsteele09/go-oidc-agent/flow"
	"github.com/jrsteele09/go-oidc-agent/internal/agentlock"
	"github.com/jrsteele09/go-oidc-agent/internal/config"
	"github.com/jrsteele09/go-oidc-agent/ipc"
	"github.com/jrsteele09/go-oidc-agent/issuer"
	"github.com/jrsteele09/go-oidc-agent/tokens"
	"github.com/jrsteele09/go-oidc-agent/transport"
)

// agent wires the token core together for the daemon process.
type agent struct {
	repo     *account.InMemoryRepo
	engine   *tokens.AcquisitionService
	resolver *issuer.Resolver
	lock     *agentlock.Guard
	pipe     *ipc.DuplexPipe
}

func runAgent(c config.Config) error {
	runtimeDir := c.GetRuntimeDir()
	if err := os.MkdirAll(runtimeDir, 0o700); err != nil {
		return errors.Wrap(err, "creating runtime dir")
	}

	// One agent per runtime dir; a second instance would race account state.
	instanceLock := flock.New(filepath.Join(runtimeDir, "agentd.lock"))
	locked, err := instanceLock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquiring instance lock")
	}
	if !locked {
		return errors.New("another agent instance is already running")
	}
	defer func() { _ = instanceLock.Unlock() }()

	a, err := buildAgent(c)
	if err != nil {
		return err
	}
	defer a.repo.WipeAll()

	// The privileged peer talks over the daemon's stdin/stdout.
	a.pipe = newPeerPipe(c, os.Stdin, os.Stdout)
	defer func() { _ = a.pipe.Close() }()

	accountsDir := flagAccountsDir
	if accountsDir == "" {
		accountsDir = c.GetAccountsDir()
	}
	if err := a.loadAccounts(accountsDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := account.NewWatcher(accountsDir, a.repo)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})

	log.Info().Int("accounts", len(a.repo.Names())).Str("accounts_dir", accountsDir).Msg("agent ready")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("agent stopped")
	return nil
}

// newPeerPipe frames the peer protocol over the given byte channels with the
// configured receive timeout.
func newPeerPipe(c config.Config, r io.Reader, w io.Writer) *ipc.DuplexPipe {
	return ipc.NewDuplexPipe(r, w, ipc.WithReceiveTimeout(c.GetPipeReceiveTimeout()))
}

func buildAgent(c config.Config) (*agent, error) {
	pool, err := transport.NewPool(transport.Options{
		CertPath: c.GetCertPath(),
		Timeout:  c.GetRequestTimeout(),
	})
	if err != nil {
		return nil, err
	}

	resolver, err := issuer.NewResolver(pool)
	if err != nil {
		return nil, err
	}

	runner, err := flow.NewRunner(pool)
	if err != nil {
		return nil, err
	}

	guard := agentlock.NewGuard()
	engine, err := tokens.NewAcquisitionService(runner, resolver, tokens.WithLockGuard(guard))
	if err != nil {
		return nil, err
	}

	return &agent{
		repo:     account.NewInMemoryRepo(),
		engine:   engine,
		resolver: resolver,
		lock:     guard,
	}, nil
}

// lookupScopes resolves an issuer's discovery document and returns the
// scopes it advertises. Backs the scopes subcommand.
func lookupScopes(c config.Config, issuerURL string) ([]string, error) {
	pool, err := transport.NewPool(transport.Options{
		CertPath: c.GetCertPath(),
		Timeout:  c.GetRequestTimeout(),
	})
	if err != nil {
		return nil, err
	}
	resolver, err := issuer.NewResolver(pool)
	if err != nil {
		return nil, err
	}
	return resolver.ScopesSupported(context.Background(), issuerURL)
}

// loadAccounts loads the accounts dir and eagerly resolves issuer metadata
// so the first acquisition per account skips the discovery round trip.
// Resolution failures are not fatal; the engine retries lazily.
func (a *agent) loadAccounts(dir string) error {
	accounts, err := account.LoadDir(dir)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			log.Warn().Str("dir", dir).Msg("accounts directory does not exist, starting empty")
			return nil
		}
		return err
	}

	for _, acct := range accounts {
		if err := a.repo.Upsert(acct); err != nil {
			return err
		}
		if err := a.resolver.Resolve(context.Background(), acct); err != nil {
			log.Warn().Err(err).Str("account", acct.Name).Msg("could not resolve issuer metadata yet")
		}
	}
	return nil
}
