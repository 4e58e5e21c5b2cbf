// Package agentlock implements the agent-wide lock. A locked agent refuses
// every token acquisition until it is unlocked with the same password; only
// the bcrypt hash of that password is kept while locked.
package agentlock

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/secrets"
)

// Guard holds the lock state. The zero value is an unlocked guard.
type Guard struct {
	mu   sync.Mutex
	hash []byte
}

// NewGuard creates an unlocked guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Lock locks the agent with password. Locking an already locked agent fails.
func (g *Guard) Lock(password []byte) error {
	defer secrets.WipeBytes(password)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hash != nil {
		return agenterrors.ErrAlreadyLocked
	}
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return agenterrors.Wrapf(err, "hashing lock password")
	}
	g.hash = hash
	return nil
}

// Unlock unlocks the agent if password matches the one used to lock it.
func (g *Guard) Unlock(password []byte) error {
	defer secrets.WipeBytes(password)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hash == nil {
		return agenterrors.ErrAlreadyUnlocked
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, password); err != nil {
		return agenterrors.ErrWrongPassword
	}
	secrets.WipeBytes(g.hash)
	g.hash = nil
	return nil
}

// CheckUnlocked returns ErrAgentLocked while the agent is locked.
func (g *Guard) CheckUnlocked() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hash != nil {
		return agenterrors.ErrAgentLocked
	}
	return nil
}
