package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, redirect_uri, client_id (+ secret for confidential clients)
	// Returns: access_token, refresh_token and id_token when "openid" was requested
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant authenticates the resource owner directly (direct access grant).
	// Token request includes: username, password, optional totp, client_id
	// Only allowed for clients with DirectAccessGrantsEnabled.
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// The presented refresh token is revoked and a rotated one is returned.
	RefreshTokenGrant GrantType = "refresh_token"
)

// TokenTypeBearer is the token_type of every token response
const TokenTypeBearer = "bearer"

// ScopeOpenID requests an ID token.
const ScopeOpenID = "openid"

// Form field names of the token endpoint
const (
	ParamGrantType    = "grant_type"
	ParamCode         = "code"
	ParamRedirectURI  = "redirect_uri"
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamUsername     = "username"
	ParamPassword     = "password"
	ParamTOTP         = "totp"
	ParamScope        = "scope"
	ParamRefreshToken = "refresh_token"
)
