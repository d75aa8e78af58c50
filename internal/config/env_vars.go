package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	portEnvVar             = "PORT"
	appNameVar             = "APP_NAME"
	envNameVar             = "ENV"
	baseURLVar             = "BASE_URL"
	bootstrapRealmVar      = "BOOTSTRAP_REALM"
	bootstrapAdminPassword = "BOOTSTRAP_ADMIN_PASSWORD"
	devEnv                 = "DEV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Token Exchange")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envNameVar, devEnv)
}

func (e EnvVars) IsDev() bool {
	return strings.EqualFold(e.GetEnv(), devEnv)
}

// GetBaseURL returns the externally visible base URL (e.g. "https://auth.example.com").
// Realm issuers are <base>/realms/<realm>.
func (EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:8080"), "/")
}

// GetBootstrapRealm names the realm created on first start. Empty disables bootstrapping.
func (EnvVars) GetBootstrapRealm() string {
	return GetEnv(bootstrapRealmVar, "master")
}

func (EnvVars) GetBootstrapAdminPassword() string {
	return GetEnv(bootstrapAdminPassword, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt reads an integer, falling back to defaultValue when unset or malformed.
func GetEnvInt(envVar string, defaultValue int) int {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("not an integer, using default")
		return defaultValue
	}
	return v
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("not a boolean, using default")
		return defaultValue
	}
	return v
}

// GetEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("not a duration, using default")
		return defaultValue
	}
	return d
}
