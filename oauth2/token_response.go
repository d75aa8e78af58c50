package oauth2

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	// AccessToken is the signed JWT used to access protected resources.
	// Usage: Authorization: Bearer <access_token>
	AccessToken string `json:"access_token"`

	// ExpiresIn is the access token lifetime in seconds (realm access token lifespan).
	ExpiresIn int64 `json:"expires_in"`

	// RefreshExpiresIn is the refresh token lifetime in seconds. It is the smaller of
	// the SSO idle timeout and what is left of the SSO max lifespan.
	RefreshExpiresIn int64 `json:"refresh_expires_in"`

	// RefreshToken is exchanged at the token endpoint with grant_type=refresh_token.
	// Rotates on each use.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type"`

	// IDToken is the OpenID Connect ID token.
	// Only present when "openid" was requested, or for the password grant.
	IDToken string `json:"id_token,omitempty"`

	// NotBeforePolicy is the realm's not-before timestamp; tokens issued earlier are invalid.
	NotBeforePolicy int64 `json:"not-before-policy"`

	// SessionState is the id of the user session the tokens belong to.
	SessionState string `json:"session_state"`

	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the RFC 6749 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
