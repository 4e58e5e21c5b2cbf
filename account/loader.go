package account

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads one decrypted account configuration from a YAML file.
// The account name defaults to the file's base name when the document does
// not set one.
func LoadFile(path string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[account.LoadFile] reading file")
	}

	var acct Account
	if err := yaml.Unmarshal(data, &acct); err != nil {
		return nil, errors.Wrapf(err, "[account.LoadFile] parsing %s", path)
	}

	if acct.Name == "" {
		base := filepath.Base(path)
		acct.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if acct.Issuer.URL == "" {
		return nil, errors.Errorf("[account.LoadFile] %s: issuer url is required", path)
	}
	if acct.ClientID == "" {
		return nil, errors.Errorf("[account.LoadFile] %s: client_id is required", path)
	}
	return &acct, nil
}

// LoadDir loads every account file (*.yaml, *.yml) from dir.
func LoadDir(dir string) ([]*Account, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "[account.LoadDir] reading directory")
	}

	accounts := make([]*Account, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isAccountFile(entry.Name()) {
			continue
		}
		acct, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func isAccountFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
