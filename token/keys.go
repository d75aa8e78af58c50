package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/pkg/errors"
)

// JWKS is the document served at the realm's certs endpoint.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is one published verification key (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

var (
	rsaBits = map[realms.SignerType]int{
		realms.SignerTypeRS256: 2048,
		realms.SignerTypeRS384: 3072,
		realms.SignerTypeRS512: 4096,
	}
	ecCurves = map[realms.SignerType]elliptic.Curve{
		realms.SignerTypeES256: elliptic.P256(),
		realms.SignerTypeES384: elliptic.P384(),
		realms.SignerTypeES512: elliptic.P521(),
	}
)

// realmKey is an asymmetric signing key bound to a realm key id.
type realmKey struct {
	id     string
	alg    realms.SignerType
	method jwt.SigningMethod
	key    crypto.Signer
}

func asymmetric(alg realms.SignerType) bool {
	_, rsaAlg := rsaBits[alg]
	_, ecAlg := ecCurves[alg]
	return rsaAlg || ecAlg
}

func newRealmKey(id string, alg realms.SignerType) (*realmKey, error) {
	var (
		key crypto.Signer
		err error
	)
	if bits, ok := rsaBits[alg]; ok {
		key, err = rsa.GenerateKey(rand.Reader, bits)
	} else if curve, ok := ecCurves[alg]; ok {
		key, err = ecdsa.GenerateKey(curve, rand.Reader)
	} else {
		return nil, errors.Errorf("[newRealmKey] %s is not an asymmetric algorithm", alg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[newRealmKey] generate %s key", alg)
	}
	return bindRealmKey(id, alg, key)
}

// bindRealmKey checks that key belongs to the family alg signs with.
func bindRealmKey(id string, alg realms.SignerType, key crypto.Signer) (*realmKey, error) {
	method := jwt.GetSigningMethod(string(alg))
	if method == nil {
		return nil, errors.Errorf("[bindRealmKey] unknown algorithm %s", alg)
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		if _, ok := rsaBits[alg]; !ok {
			return nil, errors.Errorf("[bindRealmKey] RSA key cannot sign %s", alg)
		}
	case *ecdsa.PrivateKey:
		if curve, ok := ecCurves[alg]; !ok || curve.Params().Name != k.Curve.Params().Name {
			return nil, errors.Errorf("[bindRealmKey] %s key cannot sign %s", k.Curve.Params().Name, alg)
		}
	default:
		return nil, errors.Errorf("[bindRealmKey] unsupported key type %T", key)
	}
	return &realmKey{id: id, alg: alg, method: method, key: key}, nil
}

// encode returns the private key as PKCS#8 and the public key as PKIX, both PEM armoured.
func (k *realmKey) encode() (private, public string, err error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return "", "", errors.Wrap(err, "[realmKey.encode] private key")
	}
	pubDER, err := x509.MarshalPKIXPublicKey(k.key.Public())
	if err != nil {
		return "", "", errors.Wrap(err, "[realmKey.encode] public key")
	}
	private = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	public = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return private, public, nil
}

// decodeRealmKey restores a key written by encode. A stored public key must match the private one.
func decodeRealmKey(id string, alg realms.SignerType, private, public string) (*realmKey, error) {
	block, _ := pem.Decode([]byte(private))
	if block == nil {
		return nil, errors.New("[decodeRealmKey] private key is not PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "[decodeRealmKey] private key")
	}
	key, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, errors.Errorf("[decodeRealmKey] %T cannot sign", parsed)
	}

	if public != "" {
		pubBlock, _ := pem.Decode([]byte(public))
		if pubBlock == nil {
			return nil, errors.New("[decodeRealmKey] public key is not PEM")
		}
		pub, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "[decodeRealmKey] public key")
		}
		if eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool }); !ok || !eq.Equal(key.Public()) {
			return nil, errors.New("[decodeRealmKey] public key does not match private key")
		}
	}
	return bindRealmKey(id, alg, key)
}

func (k *realmKey) jwk() JWK {
	out := JWK{Use: "sig", Kid: k.id, Alg: string(k.alg)}
	b64 := base64.RawURLEncoding.EncodeToString
	switch pub := k.key.Public().(type) {
	case *rsa.PublicKey:
		out.Kty = "RSA"
		out.N = b64(pub.N.Bytes())
		out.E = b64(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		out.Kty = "EC"
		out.Crv = pub.Curve.Params().Name
		out.X = b64(pub.X.FillBytes(make([]byte, size)))
		out.Y = b64(pub.Y.FillBytes(make([]byte, size)))
	}
	return out
}
