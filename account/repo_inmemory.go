package account

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Accounts are shared by reference - callers that mutate token
// state must do so under WithLock.
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]*repoEntry
}

type repoEntry struct {
	lock sync.Mutex // single writer per account
	acct *Account
}

// NewInMemoryRepo creates a new in-memory account table.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]*repoEntry),
	}
}

var _ Repo = (*InMemoryRepo)(nil)

// Upsert stores or replaces an account. A replaced record is wiped.
func (r *InMemoryRepo) Upsert(a *Account) error {
	if a == nil {
		return errors.New("account cannot be nil")
	}
	if a.Name == "" {
		return errors.New("account name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[a.Name]; ok {
		existing.lock.Lock()
		existing.acct.Wipe()
		existing.acct = a
		existing.lock.Unlock()
		return nil
	}
	r.entries[a.Name] = &repoEntry{acct: a}
	return nil
}

// Get retrieves an account by name.
func (r *InMemoryRepo) Get(name string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, errors.Wrap(agenterrors.ErrAccountNotFound, name)
	}
	return entry.acct, nil
}

// Delete wipes and removes an account.
func (r *InMemoryRepo) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return errors.Wrap(agenterrors.ErrAccountNotFound, name)
	}
	entry.lock.Lock()
	entry.acct.Wipe()
	entry.lock.Unlock()
	delete(r.entries, name)
	return nil
}

// List returns all accounts, sorted by name.
func (r *InMemoryRepo) List() ([]*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]*Account, 0, len(r.entries))
	for _, entry := range r.entries {
		accounts = append(accounts, entry.acct)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Names returns the loaded account names, sorted.
func (r *InMemoryRepo) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithLock runs fn with the named account under its per-account mutex.
func (r *InMemoryRepo) WithLock(name string, fn func(*Account) error) error {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return errors.Wrap(agenterrors.ErrAccountNotFound, name)
	}

	entry.lock.Lock()
	defer entry.lock.Unlock()
	return fn(entry.acct)
}

// WipeAll wipes and drops every account.
func (r *InMemoryRepo) WipeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, entry := range r.entries {
		entry.lock.Lock()
		entry.acct.Wipe()
		entry.lock.Unlock()
		delete(r.entries, name)
	}
}
