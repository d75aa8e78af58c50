package config

import (
	"strings"
	"time"
)

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimitPerMinute() int
	GetCredentialBackendTimeout() time.Duration
	GetSSSDEnabled() bool
	GetTrustedProxies() []string
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMIT_ENABLED", false)
}

// GetRateLimitPerMinute is the token endpoint budget per client id and remote address.
func (Security) GetRateLimitPerMinute() int {
	return GetEnvInt("RATE_LIMIT_PER_MINUTE", 60)
}

// GetCredentialBackendTimeout bounds calls to external credential backends such as PAM.
func (Security) GetCredentialBackendTimeout() time.Duration {
	return GetEnvDuration("CREDENTIAL_BACKEND_TIMEOUT", 5*time.Second)
}

func (Security) GetSSSDEnabled() bool {
	return GetEnvBool("SSSD_ENABLED", false)
}

// GetTrustedProxies lists the IPs and CIDR ranges allowed to set X-Forwarded-Proto and
// X-Forwarded-For. Empty means forwarding headers are ignored.
func (Security) GetTrustedProxies() []string {
	var proxies []string
	for _, p := range strings.Split(GetEnv("TRUSTED_PROXIES", ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
