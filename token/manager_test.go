package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/roles"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/stretchr/testify/require"
)

const issuer = "http://localhost:8080/realms/test"

type managerFixture struct {
	now     time.Time
	realm   *realms.Realm
	manager *token.Manager
}

func newManagerFixture(t *testing.T, signerType realms.SignerType) *managerFixture {
	t.Helper()
	f := &managerFixture{
		now:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		realm: &realms.Realm{ID: "test", SignerType: signerType},
	}
	_, err := token.GenerateSignerForRealm(f.realm)
	require.NoError(t, err)
	f.manager = token.New(token.WithNowFunc(func() time.Time { return f.now }))
	return f
}

func (f *managerFixture) request(typ token.Type) token.MintRequest {
	return token.MintRequest{
		Type:      typ,
		Realm:     f.realm,
		Issuer:    issuer,
		ClientID:  "test-app",
		UserID:    "user-1",
		SessionID: "session-1",
		Scope:     "openid",
		ExpiresAt: f.now.Add(5 * time.Minute),
		Roles:     roles.FromLists([]string{"user"}, map[string][]string{"test-app": {"customer-user"}}),
		Claims:    mappers.Claims{"sub": "spoofed", "hard": "coded"},
	}
}

func TestManager_MintAndVerify(t *testing.T) {
	for _, signerType := range []realms.SignerType{realms.SignerTypeRS256, realms.SignerTypeES256, realms.SignerTypeES384, realms.SignerTypeHMAC} {
		t.Run(string(signerType), func(t *testing.T) {
			f := newManagerFixture(t, signerType)

			minted, err := f.manager.Mint(f.request(token.TypeBearer))
			require.NoError(t, err)
			require.NotEmpty(t, minted.ID)

			parsed, err := f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeBearer)
			require.NoError(t, err)
			require.Equal(t, "user-1", parsed.Subject, "sub is always the user id")
			require.Equal(t, "test-app", parsed.ClientID)
			require.Equal(t, "session-1", parsed.SessionID)
			require.Equal(t, minted.ID, parsed.ID)
			require.Equal(t, "coded", parsed.Claims["hard"])

			realmAccess := parsed.Claims[token.ClaimRealmAccess].(map[string]any)
			require.Equal(t, []any{"user"}, realmAccess["roles"])
			resourceAccess := parsed.Claims[token.ClaimResourceAccess].(map[string]any)
			require.Equal(t, map[string]any{"roles": []any{"customer-user"}}, resourceAccess["test-app"])
		})
	}
}

func TestManager_VerifyRejects(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeRS256)
	minted, err := f.manager.Mint(f.request(token.TypeRefresh))
	require.NoError(t, err)

	_, err = f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeBearer)
	require.ErrorIs(t, err, token.ErrInvalidToken, "wrong type")

	_, err = f.manager.Verify(f.realm, "http://other/realms/test", minted.Raw, token.TypeRefresh)
	require.ErrorIs(t, err, token.ErrInvalidToken, "wrong issuer")

	parsed, err := f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeRefresh)
	require.NoError(t, err)
	require.Equal(t, "openid", parsed.Scope)
	require.NoError(t, f.manager.Revoke(parsed.ID, parsed.ExpiresAt))
	_, err = f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeRefresh)
	require.ErrorIs(t, err, token.ErrInvalidToken, "revoked")

	other := newManagerFixture(t, realms.SignerTypeRS256)
	_, err = other.manager.Verify(other.realm, issuer, minted.Raw, token.TypeRefresh)
	require.ErrorIs(t, err, token.ErrInvalidToken, "foreign key")

	f.now = f.now.Add(time.Hour)
	require.Equal(t, 1, f.manager.CleanupRevokedTokens())
	_, err = f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeRefresh)
	require.ErrorIs(t, err, token.ErrInvalidToken, "expired")
}

func TestManager_IDTokenClaims(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeRS256)
	req := f.request(token.TypeID)
	req.Nonce = "n-0S6_WzA2Mj"
	req.AuthTime = f.now
	minted, err := f.manager.Mint(req)
	require.NoError(t, err)

	parsed, err := f.manager.Verify(f.realm, issuer, minted.Raw, token.TypeID)
	require.NoError(t, err)
	require.Equal(t, "n-0S6_WzA2Mj", parsed.Nonce)
	require.Equal(t, "test-app", parsed.Claims["aud"])
	require.NotContains(t, parsed.Claims, token.ClaimRealmAccess)
}

func TestManager_GetJWKS(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeES256)
	jwks, err := f.manager.GetJWKS(f.realm)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "EC", jwks.Keys[0].Kty)
	require.Equal(t, "P-256", jwks.Keys[0].Crv)
	require.Equal(t, f.realm.KeyID, jwks.Keys[0].Kid)

	hmac := newManagerFixture(t, realms.SignerTypeHMAC)
	jwks, err = hmac.manager.GetJWKS(hmac.realm)
	require.NoError(t, err)
	require.Empty(t, jwks.Keys)
}

func TestManager_RebuildsSignerFromStoredKey(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeES384)
	require.Contains(t, f.realm.PrivateKeyPEM, "BEGIN PRIVATE KEY")
	require.Contains(t, f.realm.PublicKeyPEM, "BEGIN PUBLIC KEY")

	minted, err := f.manager.Mint(f.request(token.TypeBearer))
	require.NoError(t, err)

	restarted := token.New(token.WithNowFunc(func() time.Time { return f.now }))
	parsed, err := restarted.Verify(f.realm, issuer, minted.Raw, token.TypeBearer)
	require.NoError(t, err)
	require.Equal(t, minted.ID, parsed.ID)
}

func TestManager_RejectsMismatchedStoredKeys(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeES256)
	other := newManagerFixture(t, realms.SignerTypeES256)
	f.realm.PublicKeyPEM = other.realm.PublicKeyPEM

	_, err := f.manager.Mint(f.request(token.TypeBearer))
	require.Error(t, err)
}

func TestManager_RejectsKeyOfWrongFamily(t *testing.T) {
	f := newManagerFixture(t, realms.SignerTypeRS256)
	f.realm.SignerType = realms.SignerTypeES256

	_, err := f.manager.Mint(f.request(token.TypeBearer))
	require.Error(t, err)
}
