package config

import (
	"time"

	"github.com/jrsteele09/go-token-exchange/realms"
)

// OAuthConfig supplies the lifespans new realms start with.
type OAuthConfig interface {
	GetAccessCodeLifespan() time.Duration
	GetAccessTokenLifespan() time.Duration
	GetSSOSessionIdleTimeout() time.Duration
	GetSSOSessionMaxLifespan() time.Duration
	GetRealmLifespans() realms.Lifespans
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAccessCodeLifespan() time.Duration {
	return GetEnvDuration("ACCESS_CODE_LIFESPAN", realms.DefaultAccessCodeLifespan)
}

func (OAuth) GetAccessTokenLifespan() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_LIFESPAN", realms.DefaultAccessTokenLifespan)
}

func (OAuth) GetSSOSessionIdleTimeout() time.Duration {
	return GetEnvDuration("SSO_SESSION_IDLE_TIMEOUT", realms.DefaultSSOSessionIdleTimeout)
}

func (OAuth) GetSSOSessionMaxLifespan() time.Duration {
	return GetEnvDuration("SSO_SESSION_MAX_LIFESPAN", realms.DefaultSSOSessionMaxLifespan)
}

func (o OAuth) GetRealmLifespans() realms.Lifespans {
	return realms.Lifespans{
		AccessCode:     o.GetAccessCodeLifespan(),
		AccessToken:    o.GetAccessTokenLifespan(),
		SSOSessionIdle: o.GetSSOSessionIdleTimeout(),
		SSOSessionMax:  o.GetSSOSessionMaxLifespan(),
	}
}
