package account

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Watcher keeps a Repo in sync with an account configuration directory.
// New or changed account files are reloaded; removed files evict (and wipe)
// the corresponding account.
type Watcher struct {
	dir  string
	repo Repo
}

// NewWatcher creates a watcher for dir backed by repo.
func NewWatcher(dir string, repo Repo) (*Watcher, error) {
	if repo == nil {
		return nil, errors.New("[account.NewWatcher] repo is required")
	}
	return &Watcher{dir: dir, repo: repo}, nil
}

// Run watches the directory until ctx is cancelled. Load errors for
// individual files are logged and skipped; the watcher itself keeps running.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "[account.Watcher] creating fsnotify watcher")
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "[account.Watcher] watching %s", w.dir)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("account watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !isAccountFile(event.Name) {
		return
	}
	name := accountNameFromPath(event.Name)

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if err := w.repo.Delete(name); err == nil {
			log.Info().Str("account", name).Msg("account unloaded")
		}
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		acct, err := LoadFile(event.Name)
		if err != nil {
			log.Warn().Err(err).Str("file", event.Name).Msg("skipping unreadable account file")
			return
		}
		if err := w.repo.Upsert(acct); err != nil {
			log.Warn().Err(err).Str("account", acct.Name).Msg("failed to load account")
			return
		}
		log.Info().Str("account", acct.Name).Msg("account loaded")
	}
}

func accountNameFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
