package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetBaseURL() string
	GetBootstrapRealm() string
	GetBootstrapAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StorageConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetDatabaseURL() string
	GetSweepInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Storage
}

func New() Config {
	return mainConfig{}
}
