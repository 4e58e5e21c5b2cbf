package config

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

type AgentConfig interface {
	GetAccountsDir() string
	GetRuntimeDir() string
	GetCertPath() string
	GetRequestTimeout() time.Duration
	GetPipeReceiveTimeout() time.Duration
}

type Agent struct{}

var _ AgentConfig = Agent{}

// GetAccountsDir is where decrypted account YAML files are picked up.
func (Agent) GetAccountsDir() string {
	return GetEnv("ACCOUNTS_DIR", filepath.Join(xdg.ConfigHome, "oidc-agent", "accounts"))
}

// GetRuntimeDir holds the agent's lock file and socket.
func (Agent) GetRuntimeDir() string {
	return GetEnv("RUNTIME_DIR", filepath.Join(xdg.RuntimeDir, "oidc-agent"))
}

// GetCertPath optionally pins a CA bundle for all issuer traffic.
// Per-account cert paths take precedence.
func (Agent) GetCertPath() string {
	return GetEnv("CERT_PATH", "")
}

// GetRequestTimeout bounds a single HTTP round trip to an issuer.
func (Agent) GetRequestTimeout() time.Duration {
	return durationEnv("REQUEST_TIMEOUT_SECONDS", 30*time.Second)
}

// GetPipeReceiveTimeout bounds waiting on the privileged peer.
// Zero means wait forever (human interaction can be slow).
func (Agent) GetPipeReceiveTimeout() time.Duration {
	return durationEnv("PIPE_TIMEOUT_SECONDS", 0)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
