package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs a realm's tokens and verifies the tokens it signed.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	// Method is the only algorithm Keyfunc accepts.
	Method() jwt.SigningMethod
	Keyfunc(t *jwt.Token) (any, error)
	// JWKS lists the publishable verification keys. Symmetric signers publish none.
	JWKS() *JWKS
}

type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (s *hmacSigner) Sign(claims jwt.MapClaims) (string, error) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return raw, errors.Wrap(err, "[hmacSigner.Sign]")
}

func (s *hmacSigner) Method() jwt.SigningMethod { return jwt.SigningMethodHS256 }

func (s *hmacSigner) Keyfunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, errors.Errorf("[hmacSigner.Keyfunc] alg %v not accepted", t.Header["alg"])
	}
	return s.secret, nil
}

func (s *hmacSigner) JWKS() *JWKS { return &JWKS{Keys: []JWK{}} }

// keySigner signs with a realm's RSA or EC key and stamps its key id in the header.
type keySigner struct {
	key *realmKey
}

func (s *keySigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(s.key.method, claims)
	t.Header["kid"] = s.key.id
	raw, err := t.SignedString(s.key.key)
	return raw, errors.Wrapf(err, "[keySigner.Sign] %s", s.key.alg)
}

func (s *keySigner) Method() jwt.SigningMethod { return s.key.method }

// Keyfunc refuses tokens carrying another kid, such as one the realm rotated away from.
func (s *keySigner) Keyfunc(t *jwt.Token) (any, error) {
	if kid, ok := t.Header["kid"].(string); ok && kid != s.key.id {
		return nil, errors.Errorf("[keySigner.Keyfunc] unknown kid %s", kid)
	}
	if t.Method.Alg() != s.key.method.Alg() {
		return nil, errors.Errorf("[keySigner.Keyfunc] alg %v not accepted", t.Header["alg"])
	}
	return s.key.key.Public(), nil
}

func (s *keySigner) JWKS() *JWKS { return &JWKS{Keys: []JWK{s.key.jwk()}} }
