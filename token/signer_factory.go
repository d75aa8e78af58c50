package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/pkg/errors"
)

// GenerateSignerForRealm creates fresh key material for the realm's SignerType, defaulting to RS256,
// and records it on the realm so the caller can persist it.
func GenerateSignerForRealm(realm *realms.Realm) (Signer, error) {
	if realm.SignerType == "" {
		realm.SignerType = realms.SignerTypeRS256
	}
	if realm.KeyID == "" {
		realm.KeyID = uuid.New().String()
	}

	if realm.SignerType == realms.SignerTypeHMAC {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, "[GenerateSignerForRealm] HMAC secret")
		}
		realm.HMACSecret = hex.EncodeToString(secret)
		return newHMACSigner(realm.HMACSecret), nil
	}

	key, err := newRealmKey(realm.KeyID, realm.SignerType)
	if err != nil {
		return nil, errors.Wrapf(err, "[GenerateSignerForRealm] realm %s", realm.ID)
	}
	realm.PrivateKeyPEM, realm.PublicKeyPEM, err = key.encode()
	if err != nil {
		return nil, errors.Wrapf(err, "[GenerateSignerForRealm] realm %s", realm.ID)
	}
	return &keySigner{key: key}, nil
}

// HasKeyMaterial reports whether the realm carries the keys its signer type needs.
func HasKeyMaterial(realm *realms.Realm) bool {
	switch {
	case realm.SignerType == realms.SignerTypeHMAC:
		return realm.HMACSecret != ""
	case asymmetric(realm.SignerType):
		return realm.PrivateKeyPEM != ""
	default:
		return false
	}
}

func createSignerFromRealm(realm *realms.Realm) (Signer, error) {
	if !HasKeyMaterial(realm) {
		return nil, errors.Errorf("[createSignerFromRealm] realm %s has no %q key material", realm.ID, realm.SignerType)
	}
	if realm.SignerType == realms.SignerTypeHMAC {
		return newHMACSigner(realm.HMACSecret), nil
	}
	key, err := decodeRealmKey(realm.KeyID, realm.SignerType, realm.PrivateKeyPEM, realm.PublicKeyPEM)
	if err != nil {
		return nil, errors.Wrapf(err, "[createSignerFromRealm] realm %s", realm.ID)
	}
	return &keySigner{key: key}, nil
}
