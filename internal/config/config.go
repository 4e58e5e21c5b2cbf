package config

type Config interface {
	EnvConfig
	AgentConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Agent
}

func New() Config {
	return mainConfig{}
}
