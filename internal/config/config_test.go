package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oidc-agent/internal/config"
)

func TestEnvVarsDefaults(t *testing.T) {
	t.Setenv("APP_NAME", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "")

	env := config.EnvVars{}
	require.Equal(t, "OIDC Agent", env.GetAppName())
	require.Equal(t, "info", env.GetLogLevel())
	require.Equal(t, "DEV", env.GetEnv())
}

func TestEnvVarsOverrides(t *testing.T) {
	t.Setenv("APP_NAME", "agentd")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENV", "PROD")

	env := config.EnvVars{}
	require.Equal(t, "agentd", env.GetAppName())
	require.Equal(t, "debug", env.GetLogLevel())
	require.Equal(t, "PROD", env.GetEnv())
}

func TestAgentConfigOverrides(t *testing.T) {
	t.Setenv("ACCOUNTS_DIR", "/tmp/accounts")
	t.Setenv("RUNTIME_DIR", "/tmp/runtime")
	t.Setenv("CERT_PATH", "/tmp/ca.pem")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")
	t.Setenv("PIPE_TIMEOUT_SECONDS", "120")

	agent := config.Agent{}
	require.Equal(t, "/tmp/accounts", agent.GetAccountsDir())
	require.Equal(t, "/tmp/runtime", agent.GetRuntimeDir())
	require.Equal(t, "/tmp/ca.pem", agent.GetCertPath())
	require.Equal(t, 5*time.Second, agent.GetRequestTimeout())
	require.Equal(t, 2*time.Minute, agent.GetPipeReceiveTimeout())
}

func TestAgentConfigDurationDefaults(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "")
	t.Setenv("PIPE_TIMEOUT_SECONDS", "")

	agent := config.Agent{}
	require.Equal(t, 30*time.Second, agent.GetRequestTimeout())
	require.Equal(t, time.Duration(0), agent.GetPipeReceiveTimeout())
}

func TestAgentConfigRejectsBadDurations(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "soon")
	t.Setenv("PIPE_TIMEOUT_SECONDS", "-3")

	agent := config.Agent{}
	require.Equal(t, 30*time.Second, agent.GetRequestTimeout())
	require.Equal(t, time.Duration(0), agent.GetPipeReceiveTimeout())
}
