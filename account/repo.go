package account

// Repo is the agent's in-memory account table. Implementations own the
// lifetime of the Account records they hold: a deleted or replaced record is
// wiped before it is released.
type Repo interface {
	Upsert(a *Account) error
	Get(name string) (*Account, error)
	Delete(name string) error
	List() ([]*Account, error)
	Names() []string

	// WithLock runs fn with the named account under that account's mutex.
	// Acquisitions that may mutate token state must go through WithLock so
	// that at most one writer per account exists at a time.
	WithLock(name string, fn func(*Account) error) error

	// WipeAll wipes and drops every account. Used at agent shutdown.
	WipeAll()
}
