package token

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/roles"
	"github.com/pkg/errors"
)

// Type is the "typ" claim of a minted token.
type Type string

const (
	TypeBearer  Type = "Bearer"
	TypeID      Type = "ID"
	TypeRefresh Type = "Refresh"
)

// Claim names
const (
	ClaimType           = "typ"
	ClaimAuthorizedBy   = "azp"
	ClaimSessionState   = "session_state"
	ClaimRealmAccess    = "realm_access"
	ClaimResourceAccess = "resource_access"
	ClaimScope          = "scope"
	ClaimNonce          = "nonce"
	ClaimAuthTime       = "auth_time"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// MintRequest describes a token to sign.
type MintRequest struct {
	Type      Type
	Realm     *realms.Realm
	Issuer    string
	ClientID  string
	UserID    string
	SessionID string
	Scope     string
	Nonce     string
	AuthTime  time.Time
	ExpiresAt time.Time
	Roles     *roles.Set     // realm_access and resource_access of access tokens
	Claims    mappers.Claims // mapper output; standard claims take precedence
}

// Minted is a signed token and the values the caller reports about it.
type Minted struct {
	Raw       string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Parsed is a verified token.
type Parsed struct {
	ID        string
	Type      Type
	Subject   string
	ClientID  string
	SessionID string
	Scope     string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    jwt.MapClaims
}

type Manager struct {
	signers      map[string]Signer // key: realmID/keyID
	lock         sync.RWMutex
	revoked      RevocationList
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithRevocationList(list RevocationList) ManagerOption {
	return func(m *Manager) {
		m.revoked = list
	}
}

func New(options ...ManagerOption) *Manager {
	m := &Manager{
		signers:      make(map[string]Signer),
		revoked:      NewMemoryRevocations(),
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func signerKey(realm *realms.Realm) string {
	return realm.ID + "/" + realm.KeyID
}

// SignerFor returns the realm's signer, building it from the realm's key material on first use.
func (m *Manager) SignerFor(realm *realms.Realm) (Signer, error) {
	m.lock.RLock()
	signer, ok := m.signers[signerKey(realm)]
	m.lock.RUnlock()
	if ok {
		return signer, nil
	}

	signer, err := createSignerFromRealm(realm)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.SignerFor]")
	}
	m.RegisterRealmSigner(realm, signer)
	return signer, nil
}

// RegisterRealmSigner installs a signer for the realm's current key id
func (m *Manager) RegisterRealmSigner(realm *realms.Realm, signer Signer) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.signers[signerKey(realm)] = signer
}

// Mint builds the claims for req and signs them with the realm's key.
func (m *Manager) Mint(req MintRequest) (*Minted, error) {
	signer, err := m.SignerFor(req.Realm)
	if err != nil {
		return nil, err
	}

	now := m.nowFunc()
	jti := uuid.New().String()

	claims := jwt.MapClaims{}
	for k, v := range req.Claims {
		claims[k] = v
	}
	claims["iss"] = req.Issuer
	claims["sub"] = req.UserID
	claims["iat"] = now.Unix()
	claims["exp"] = req.ExpiresAt.Unix()
	claims["jti"] = jti
	claims[ClaimType] = string(req.Type)
	claims[ClaimAuthorizedBy] = req.ClientID
	claims[ClaimSessionState] = req.SessionID
	if req.Nonce != "" {
		claims[ClaimNonce] = req.Nonce
	}

	switch req.Type {
	case TypeBearer:
		claims["aud"] = req.ClientID
		claims[ClaimScope] = req.Scope
		addRoleClaims(claims, req.Roles)
	case TypeID:
		claims["aud"] = req.ClientID
		if !req.AuthTime.IsZero() {
			claims[ClaimAuthTime] = req.AuthTime.Unix()
		}
	case TypeRefresh:
		claims["aud"] = req.Issuer
		claims[ClaimScope] = req.Scope
	default:
		return nil, errors.Errorf("[Manager.Mint] unknown token type %q", req.Type)
	}

	raw, err := signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Mint] sign")
	}
	return &Minted{Raw: raw, ID: jti, IssuedAt: now, ExpiresAt: req.ExpiresAt}, nil
}

func addRoleClaims(claims jwt.MapClaims, set *roles.Set) {
	if set == nil {
		set = roles.New()
	}
	claims[ClaimRealmAccess] = map[string]any{"roles": set.RealmRoles()}

	resource := map[string]any{}
	for _, clientID := range set.Clients() {
		resource[clientID] = map[string]any{"roles": set.ClientRoles(clientID)}
	}
	if len(resource) > 0 {
		claims[ClaimResourceAccess] = resource
	}
}

// Verify checks the signature, issuer, expiry, type and revocation status of raw.
func (m *Manager) Verify(realm *realms.Realm, issuer, raw string, expected Type) (*Parsed, error) {
	signer, err := m.SignerFor(realm)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signer.Method().Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	parsed, err := parser.Parse(raw, signer.Keyfunc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrInvalidToken, "unexpected claims type")
	}

	p := &Parsed{Claims: claims}
	p.ID, _ = claims["jti"].(string)
	p.Subject, _ = claims["sub"].(string)
	p.ClientID, _ = claims[ClaimAuthorizedBy].(string)
	p.SessionID, _ = claims[ClaimSessionState].(string)
	p.Scope, _ = claims[ClaimScope].(string)
	p.Nonce, _ = claims[ClaimNonce].(string)
	if typ, ok := claims[ClaimType].(string); ok {
		p.Type = Type(typ)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Time
	}

	if p.Type != expected {
		return nil, errors.Wrapf(ErrInvalidToken, "expected %s token, got %q", expected, p.Type)
	}
	if p.ID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "token missing jti claim")
	}
	if m.revoked.IsRevoked(p.ID) {
		return nil, errors.Wrap(ErrInvalidToken, "token has been revoked")
	}
	return p, nil
}

// Revoke rejects the token id until exp.
func (m *Manager) Revoke(jti string, exp time.Time) error {
	return m.revoked.Add(jti, exp)
}

// GetJWKS returns the realm's public keys. HMAC realms publish an empty set.
func (m *Manager) GetJWKS(realm *realms.Realm) (*JWKS, error) {
	signer, err := m.SignerFor(realm)
	if err != nil {
		return nil, err
	}
	return signer.JWKS(), nil
}

// CleanupRevokedTokens drops revoked ids that have expired anyway.
func (m *Manager) CleanupRevokedTokens() int {
	return m.revoked.Prune(m.nowFunc())
}
