package oauth2_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/stretchr/testify/require"
)

func newFormRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/realms/test/protocol/openid-connect/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func trustedProxies(t *testing.T, entries ...string) oauth2.TrustedProxies {
	t.Helper()
	proxies, err := oauth2.ParseTrustedProxies(entries)
	require.NoError(t, err)
	return proxies
}

func TestParseTokenRequest_Form(t *testing.T) {
	r := newFormRequest(t, url.Values{
		oauth2.ParamGrantType:    {"password"},
		oauth2.ParamClientID:     {"test-app"},
		oauth2.ParamClientSecret: {"password"},
		oauth2.ParamUsername:     {"test-user@localhost"},
		oauth2.ParamPassword:     {"password"},
		oauth2.ParamTOTP:         {"123456"},
	})
	r.RemoteAddr = "10.0.0.5:51234"

	req, err := oauth2.ParseTokenRequest(r, "test", nil)
	require.NoError(t, err)
	require.Equal(t, "test", req.RealmID)
	require.Equal(t, oauth2.PasswordGrant, req.GrantType)
	require.Equal(t, "test-app", req.ClientID)
	require.Equal(t, "password", req.ClientSecret)
	require.Equal(t, "test-user@localhost", req.Username)
	require.Equal(t, "123456", req.TOTP)
	require.Equal(t, "10.0.0.5", req.RemoteAddr)
	require.False(t, req.Secure)
}

func TestParseTokenRequest_BasicAuthWins(t *testing.T) {
	r := newFormRequest(t, url.Values{
		oauth2.ParamGrantType:   {"authorization_code"},
		oauth2.ParamClientID:    {"form-client"},
		oauth2.ParamCode:        {"abc"},
		oauth2.ParamRedirectURI: {"http://localhost:8081/app/auth"},
	})
	r.SetBasicAuth("test-app", "password")
	r.Header.Set("X-Forwarded-Proto", "https")
	r.RemoteAddr = "[::1]:8080"

	req, err := oauth2.ParseTokenRequest(r, "test", trustedProxies(t, "::1"))
	require.NoError(t, err)
	require.Equal(t, "test-app", req.ClientID)
	require.Equal(t, "password", req.ClientSecret)
	require.Equal(t, "abc", req.Code)
	require.Equal(t, "http://localhost:8081/app/auth", req.RedirectURI)
	require.Equal(t, "::1", req.RemoteAddr)
	require.True(t, req.Secure)
}

func TestParseTokenRequest_BasicAuthIsFormUnescaped(t *testing.T) {
	r := newFormRequest(t, url.Values{oauth2.ParamGrantType: {"password"}})
	r.SetBasicAuth(url.QueryEscape("my app"), url.QueryEscape("p@ss:word+1"))

	req, err := oauth2.ParseTokenRequest(r, "test", nil)
	require.NoError(t, err)
	require.Equal(t, "my app", req.ClientID)
	require.Equal(t, "p@ss:word+1", req.ClientSecret)
}

func TestParseTokenRequest_ForwardedHeadersFromUntrustedPeer(t *testing.T) {
	r := newFormRequest(t, url.Values{oauth2.ParamGrantType: {"password"}})
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-For", "127.0.0.1")
	r.RemoteAddr = "203.0.113.7:40000"

	req, err := oauth2.ParseTokenRequest(r, "test", trustedProxies(t, "10.0.0.0/8"))
	require.NoError(t, err)
	require.False(t, req.Secure)
	require.Equal(t, "203.0.113.7", req.RemoteAddr)
}

func TestParseTokenRequest_TrustedProxy(t *testing.T) {
	r := newFormRequest(t, url.Values{oauth2.ParamGrantType: {"password"}})
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.7")
	r.RemoteAddr = "10.1.2.3:40000"

	req, err := oauth2.ParseTokenRequest(r, "test", trustedProxies(t, "10.0.0.0/8"))
	require.NoError(t, err)
	require.True(t, req.Secure)
	require.Equal(t, "203.0.113.7", req.RemoteAddr)
}

func TestParseTrustedProxies(t *testing.T) {
	proxies := trustedProxies(t, "10.0.0.0/8", " 192.168.1.10 ", "", "::1")
	require.True(t, proxies.Contains("10.200.0.1"))
	require.True(t, proxies.Contains("192.168.1.10"))
	require.False(t, proxies.Contains("192.168.1.11"))
	require.True(t, proxies.Contains("::1"))
	require.False(t, proxies.Contains("not-an-ip"))

	_, err := oauth2.ParseTrustedProxies([]string{"10.0.0.0/99"})
	require.Error(t, err)
	_, err = oauth2.ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)
}
