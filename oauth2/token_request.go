package oauth2

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// TokenRequest holds the parameters of a token endpoint request.
type TokenRequest struct {
	RealmID   string
	GrantType GrantType

	// ClientID and ClientSecret come from the Authorization: Basic header when present,
	// otherwise from the form.
	ClientID     string
	ClientSecret string

	// authorization_code
	Code        string
	RedirectURI string

	// password
	Username string
	Password string
	TOTP     string
	Scope    string

	// refresh_token
	RefreshToken string

	// Secure is true when the request arrived over TLS (directly or via a trusted proxy).
	Secure     bool
	RemoteAddr string
}

// ParseTokenRequest reads a form encoded token request. The caller supplies the realm id
// from the path. Forwarding headers only count when the peer is one of proxies.
func ParseTokenRequest(r *http.Request, realmID string, proxies TrustedProxies) (*TokenRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req := &TokenRequest{
		RealmID:      realmID,
		GrantType:    GrantType(r.PostForm.Get(ParamGrantType)),
		ClientID:     r.PostForm.Get(ParamClientID),
		ClientSecret: r.PostForm.Get(ParamClientSecret),
		Code:         r.PostForm.Get(ParamCode),
		RedirectURI:  r.PostForm.Get(ParamRedirectURI),
		Username:     r.PostForm.Get(ParamUsername),
		Password:     r.PostForm.Get(ParamPassword),
		TOTP:         r.PostForm.Get(ParamTOTP),
		Scope:        r.PostForm.Get(ParamScope),
		RefreshToken: r.PostForm.Get(ParamRefreshToken),
		Secure:       proxies.Secure(r),
		RemoteAddr:   proxies.ClientAddress(r),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		// RFC 6749 2.3.1 form-encodes the credentials before base64
		req.ClientID = formUnescape(id)
		req.ClientSecret = formUnescape(secret)
	}
	return req, nil
}

func formUnescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
