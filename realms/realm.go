package realms

import (
	"net"
	"slices"
	"strings"
	"time"
)

// SSLRequired is the realm policy for insecure (plain HTTP) requests.
type SSLRequired string

const (
	SSLRequiredNone     SSLRequired = "none"     // plain HTTP allowed from anywhere
	SSLRequiredExternal SSLRequired = "external" // plain HTTP allowed from loopback and private addresses only
	SSLRequiredAll      SSLRequired = "all"      // every request must arrive over TLS
)

// SignerType selects the algorithm a realm signs its tokens with.
type SignerType string

const (
	SignerTypeHMAC  SignerType = "HS256"
	SignerTypeRS256 SignerType = "RS256"
	SignerTypeRS384 SignerType = "RS384"
	SignerTypeRS512 SignerType = "RS512"
	SignerTypeES256 SignerType = "ES256"
	SignerTypeES384 SignerType = "ES384"
	SignerTypeES512 SignerType = "ES512"
)

// Default realm lifespans
const (
	DefaultAccessCodeLifespan    = 60 * time.Second
	DefaultAccessTokenLifespan   = 5 * time.Minute
	DefaultSSOSessionIdleTimeout = 30 * time.Minute
	DefaultSSOSessionMaxLifespan = 10 * time.Hour
)

// Lifespans groups the time limits a realm enforces.
type Lifespans struct {
	AccessCode     time.Duration
	AccessToken    time.Duration
	SSOSessionIdle time.Duration
	SSOSessionMax  time.Duration
}

func DefaultLifespans() Lifespans {
	return Lifespans{
		AccessCode:     DefaultAccessCodeLifespan,
		AccessToken:    DefaultAccessTokenLifespan,
		SSOSessionIdle: DefaultSSOSessionIdleTimeout,
		SSOSessionMax:  DefaultSSOSessionMaxLifespan,
	}
}

// Realm is the tenant boundary. It owns its clients, users and roles, and carries the
// policy every grant is checked against.
type Realm struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Enabled               bool          `json:"enabled"`
	SSLRequired           SSLRequired   `json:"sslRequired"`
	AccessCodeLifespan    time.Duration `json:"accessCodeLifespan"`
	AccessTokenLifespan   time.Duration `json:"accessTokenLifespan"`
	SSOSessionIdleTimeout time.Duration `json:"ssoSessionIdleTimeout"`
	SSOSessionMaxLifespan time.Duration `json:"ssoSessionMaxLifespan"`
	NotBefore             int64         `json:"notBefore"` // tokens issued before this unix time are invalid
	Issuer                string        `json:"issuer"`    // overrides <baseURL>/realms/<id> when set
	Roles                 []string      `json:"roles"`     // realm roles defined in this realm

	// Signing key material
	SignerType    SignerType `json:"signerType"`
	KeyID         string     `json:"keyId"`
	HMACSecret    string     `json:"-"`
	PrivateKeyPEM string     `json:"-"`
	PublicKeyPEM  string     `json:"-"`
}

// ApplyDefaults fills unset lifespans.
func (r *Realm) ApplyDefaults(d Lifespans) {
	if r.AccessCodeLifespan <= 0 {
		r.AccessCodeLifespan = d.AccessCode
	}
	if r.AccessTokenLifespan <= 0 {
		r.AccessTokenLifespan = d.AccessToken
	}
	if r.SSOSessionIdleTimeout <= 0 {
		r.SSOSessionIdleTimeout = d.SSOSessionIdle
	}
	if r.SSOSessionMaxLifespan <= 0 {
		r.SSOSessionMaxLifespan = d.SSOSessionMax
	}
	if r.SSLRequired == "" {
		r.SSLRequired = SSLRequiredExternal
	}
}

// HasRole reports whether the realm role is defined.
func (r *Realm) HasRole(role string) bool {
	return slices.Contains(r.Roles, role)
}

// AddRole defines a realm role.
func (r *Realm) AddRole(role string) {
	if !r.HasRole(role) {
		r.Roles = append(r.Roles, role)
	}
}

// RemoveRole deletes a realm role definition.
func (r *Realm) RemoveRole(role string) {
	r.Roles = slices.DeleteFunc(r.Roles, func(s string) bool { return s == role })
}

// IssuerURL is the "iss" value of tokens minted by this realm.
func (r *Realm) IssuerURL(baseURL string) string {
	if r.Issuer != "" {
		return r.Issuer
	}
	return strings.TrimSuffix(baseURL, "/") + "/realms/" + r.ID
}

// SSLRequiredFor reports whether a request arriving without TLS from remoteAddr must be rejected.
func (r *Realm) SSLRequiredFor(remoteAddr string) bool {
	switch r.SSLRequired {
	case SSLRequiredAll:
		return true
	case SSLRequiredNone:
		return false
	default:
		return !isLocalAddress(remoteAddr)
	}
}

// Clone returns a deep copy, used as a per-request configuration snapshot.
func (r *Realm) Clone() *Realm {
	c := *r
	c.Roles = slices.Clone(r.Roles)
	return &c
}

func isLocalAddress(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return host == "localhost"
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
