package credentials

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-exchange/federation"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
)

// Type is the kind of a presented credential.
type Type string

const (
	TypePassword Type = "password"
	TypeTOTP     Type = "totp"
)

// DefaultBackendTimeout bounds a federated credential check.
const DefaultBackendTimeout = 5 * time.Second

// TOTP parameters
const (
	totpPeriod = 30
	totpSkew   = 1
)

// Input is a credential presented by the user.
type Input struct {
	Type  Type
	Value string
}

// Password returns a password Input.
func Password(value string) Input {
	return Input{Type: TypePassword, Value: value}
}

// TOTP returns a one-time code Input.
func TOTP(value string) Input {
	return Input{Type: TypeTOTP, Value: value}
}

// Validator checks presented credentials against a user's stored credentials, or against the
// federation backend for passwords of federated users.
type Validator struct {
	backend federation.CredentialBackend
	now     func() time.Time
}

// Option configures the Validator
type Option func(*Validator)

// WithBackend delegates password checks of federated users to backend, bounded by timeout.
func WithBackend(backend federation.CredentialBackend, timeout time.Duration) Option {
	return func(v *Validator) {
		if timeout <= 0 {
			timeout = DefaultBackendTimeout
		}
		v.backend = federation.WithTimeout(backend, timeout)
	}
}

// WithNowFunc replaces the clock used for TOTP validation.
func WithNowFunc(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports whether every presented credential is valid for user. An empty list or an
// unknown credential type is invalid. The result never says which credential failed.
func (v *Validator) Validate(ctx context.Context, realm *realms.Realm, user *users.User, presented []Input) bool {
	if user == nil || len(presented) == 0 {
		return false
	}
	for _, in := range presented {
		if !v.validate(ctx, realm, user, in) {
			return false
		}
	}
	return true
}

func (v *Validator) validate(ctx context.Context, realm *realms.Realm, user *users.User, in Input) bool {
	if in.Value == "" {
		return false
	}
	switch in.Type {
	case TypePassword:
		if user.IsFederated() && v.backend != nil {
			return v.checkBackend(ctx, realm, user, in)
		}
		if user.Credentials.PasswordHash == "" {
			return false
		}
		return users.CheckPasswordHash(in.Value, user.Credentials.PasswordHash)
	case TypeTOTP:
		if user.Credentials.TOTPSecret == "" {
			return false
		}
		ok, err := totp.ValidateCustom(in.Value, user.Credentials.TOTPSecret, v.now().UTC(), totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpSkew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		return err == nil && ok
	}
	log.Debug().Str("realm", realm.ID).Str("type", string(in.Type)).Msg("unsupported credential type")
	return false
}

func (v *Validator) checkBackend(ctx context.Context, realm *realms.Realm, user *users.User, in Input) bool {
	ok, err := v.backend.Check(ctx, user.Username, string(in.Type), in.Value)
	if err != nil {
		log.Warn().Err(err).
			Str("realm", realm.ID).
			Str("user", user.Username).
			Str("federation", user.FederationLink).
			Msg("credential backend check failed")
		return false
	}
	return ok
}
