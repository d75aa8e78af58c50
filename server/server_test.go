package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-exchange/auth"
	"github.com/jrsteele09/go-token-exchange/clients"
	clientrepofakes "github.com/jrsteele09/go-token-exchange/clients/repofakes"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/jrsteele09/go-token-exchange/consent"
	"github.com/jrsteele09/go-token-exchange/events"
	"github.com/jrsteele09/go-token-exchange/events/eventsfake"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/realms"
	realmrepofakes "github.com/jrsteele09/go-token-exchange/realms/repofakes"
	"github.com/jrsteele09/go-token-exchange/server"
	sessionrepofakes "github.com/jrsteele09/go-token-exchange/sessions/repofakes"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/jrsteele09/go-token-exchange/users"
	userrepofakes "github.com/jrsteele09/go-token-exchange/users/repofakes"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testRealmID      = "test"
	testClientID     = "test-app"
	testClientSecret = "password"
	testUserID       = "user-1"
	testUsername     = "test-user@localhost"
	testUserPassword = "password"
	testRedirectURI  = "http://localhost:8081/app/auth"
)

type serverFixture struct {
	ts       *httptest.Server
	repos    auth.Repos
	service  *auth.AuthorizationService
	recorder *eventsfake.Recorder
	issuer   string
}

func setupServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		repos: auth.Repos{
			Realms:    realmrepofakes.NewFakeRealmRepo(),
			Clients:   clientrepofakes.NewFakeClientRepo(),
			Templates: clientrepofakes.NewFakeTemplateRepo(),
			Users:     userrepofakes.NewFakeUserRepo(),
			Sessions:  sessionrepofakes.NewFakeSessionRepo(),
			Codes:     codes.NewMemoryStore(),
			Consents:  consent.NewMemoryStore(),
		},
		recorder: eventsfake.NewRecorder(),
	}

	var handler http.Handler = http.NotFoundHandler()
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(f.ts.Close)
	f.issuer = f.ts.URL + "/realms/" + testRealmID

	tokens := token.New()
	service, err := auth.NewAuthorizationService(f.repos, tokens,
		auth.WithBaseURL(f.ts.URL),
		auth.WithEventSink(f.recorder),
	)
	require.NoError(t, err)
	f.service = service

	realm := &realms.Realm{
		ID:         testRealmID,
		Name:       "Test",
		Enabled:    true,
		Roles:      []string{"user"},
		SignerType: realms.SignerTypeRS256,
	}
	realm.ApplyDefaults(realms.DefaultLifespans())
	_, err = token.GenerateSignerForRealm(realm)
	require.NoError(t, err)
	require.NoError(t, f.repos.Realms.Upsert(realm))

	require.NoError(t, f.repos.Clients.Upsert(&clients.Client{
		ClientID:                  testClientID,
		RealmID:                   testRealmID,
		Secret:                    testClientSecret,
		Enabled:                   true,
		DirectAccessGrantsEnabled: true,
		FullScopeAllowed:          true,
		RedirectURIs:              []string{"http://localhost:8081/app/*"},
	}))

	user := &users.User{
		ID:         testUserID,
		RealmID:    testRealmID,
		Username:   testUsername,
		Email:      testUsername,
		Enabled:    true,
		RealmRoles: []string{"user"},
	}
	require.NoError(t, user.SetPassword(testUserPassword))
	require.NoError(t, f.repos.Users.Upsert(user))

	srv, err := server.New(config.New(), service)
	require.NoError(t, err)
	handler = srv
	return f
}

func (f *serverFixture) oauth2Config(t *testing.T) (*oauth2.Config, *oidc.Provider) {
	t.Helper()
	provider, err := oidc.NewProvider(context.Background(), f.issuer)
	require.NoError(t, err)
	return &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  testRedirectURI,
		Scopes:       []string{oidc.ScopeOpenID},
	}, provider
}

func (f *serverFixture) postToken(t *testing.T, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(f.issuer+"/protocol/openid-connect/token", form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestDiscoveryAndCerts(t *testing.T) {
	f := setupServerFixture(t)

	resp, err := http.Get(f.issuer + "/.well-known/openid-configuration")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Equal(t, f.issuer, doc["issuer"])
	require.Equal(t, f.issuer+"/protocol/openid-connect/token", doc["token_endpoint"])
	require.Equal(t, []any{"RS256"}, doc["id_token_signing_alg_values_supported"])

	certs, err := http.Get(f.issuer + "/protocol/openid-connect/certs")
	require.NoError(t, err)
	defer certs.Body.Close()
	var jwks token.JWKS
	require.NoError(t, json.NewDecoder(certs.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)

	missing, err := http.Get(f.ts.URL + "/realms/nope/.well-known/openid-configuration")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestPasswordGrant_VerifiedByOIDCClient(t *testing.T) {
	f := setupServerFixture(t)
	ctx := context.Background()
	conf, provider := f.oauth2Config(t)

	tok, err := conf.PasswordCredentialsToken(ctx, testUsername, testUserPassword)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)

	rawIDToken, ok := tok.Extra("id_token").(string)
	require.True(t, ok)
	idToken, err := provider.Verifier(&oidc.Config{ClientID: testClientID}).Verify(ctx, rawIDToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, idToken.Subject)

	// refresh through the standard client
	refreshed, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	require.NoError(t, err)
	require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)
}

func TestAuthorizationCodeExchange(t *testing.T) {
	f := setupServerFixture(t)
	ctx := context.Background()
	conf, provider := f.oauth2Config(t)

	login, err := f.service.CompleteLogin(ctx, auth.LoginCompletion{
		RealmID:     testRealmID,
		ClientID:    testClientID,
		RedirectURI: testRedirectURI,
		Scope:       oidc.ScopeOpenID,
		Nonce:       "abc123",
		UserID:      testUserID,
		IPAddress:   "127.0.0.1",
	})
	require.NoError(t, err)

	tok, err := conf.Exchange(ctx, login.Code.ID)
	require.NoError(t, err)

	idToken, err := provider.Verifier(&oidc.Config{ClientID: testClientID}).Verify(ctx, tok.Extra("id_token").(string))
	require.NoError(t, err)
	require.Equal(t, "abc123", idToken.Nonce)

	_, err = conf.Exchange(ctx, login.Code.ID)
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	require.Equal(t, apperrors.CodeInvalidGrant, retrieveErr.ErrorCode)
	require.Equal(t, "Code not valid", retrieveErr.ErrorDescription)
}

func TestTokenEndpoint_ErrorBodyAndHeaders(t *testing.T) {
	f := setupServerFixture(t)

	resp := f.postToken(t, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {testUsername},
		"password":      {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Equal(t, "no-cache", resp.Header.Get("Pragma"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_grant", body["error"])
	require.Equal(t, "Invalid user credentials", body["error_description"])

	ok := f.postToken(t, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {testUsername},
		"password":      {testUserPassword},
	})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	var success map[string]any
	require.NoError(t, json.NewDecoder(ok.Body).Decode(&success))
	require.Equal(t, "bearer", success["token_type"])
	require.Contains(t, success, "not-before-policy")
	require.Contains(t, success, "session_state")
}

func TestTokenEndpoint_RateLimited(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "1")
	f := setupServerFixture(t)

	form := url.Values{"grant_type": {"password"}, "client_id": {testClientID}}
	first := f.postToken(t, form)
	require.NotEqual(t, http.StatusTooManyRequests, first.StatusCode)

	second := f.postToken(t, form)
	require.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	require.Equal(t, "rate_limited", body["error"])
}

func TestAccountApplications(t *testing.T) {
	f := setupServerFixture(t)
	ctx := context.Background()
	conf, _ := f.oauth2Config(t)

	require.NoError(t, f.repos.Clients.Upsert(&clients.Client{
		ClientID:        "third-party",
		RealmID:         testRealmID,
		Secret:          testClientSecret,
		Enabled:         true,
		ConsentRequired: true,
		RedirectURIs:    []string{"http://localhost:8081/app/*"},
		ScopeMappings:   clients.ScopeMappings{Realm: []string{"user"}},
	}))
	_, err := f.service.CompleteLogin(ctx, auth.LoginCompletion{
		RealmID:     testRealmID,
		ClientID:    "third-party",
		RedirectURI: testRedirectURI,
		UserID:      testUserID,
		Consent:     auth.ConsentAccepted,
	})
	require.NoError(t, err)

	tok, err := conf.PasswordCredentialsToken(ctx, testUsername, testUserPassword)
	require.NoError(t, err)
	client := conf.Client(ctx, tok)
	appsURL := f.issuer + "/account/applications"

	resp, err := client.Get(appsURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var apps []auth.GrantedApplication
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apps))
	require.Len(t, apps, 1)
	require.Equal(t, "third-party", apps[0].ClientID)

	req, err := http.NewRequest(http.MethodDelete, appsURL+"/third-party", nil)
	require.NoError(t, err)
	revoked, err := client.Do(req)
	require.NoError(t, err)
	defer revoked.Body.Close()
	require.Equal(t, http.StatusNoContent, revoked.StatusCode)

	again, err := client.Do(req)
	require.NoError(t, err)
	defer again.Body.Close()
	require.Equal(t, http.StatusNotFound, again.StatusCode)

	anonymous, err := http.Get(appsURL)
	require.NoError(t, err)
	defer anonymous.Body.Close()
	require.Equal(t, http.StatusUnauthorized, anonymous.StatusCode)
	require.True(t, strings.HasPrefix(anonymous.Header.Get("WWW-Authenticate"), "Bearer"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupServerFixture(t)
	f.postToken(t, url.Values{"grant_type": {"client_credentials"}, "client_id": {testClientID}})

	resp, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf strings.Builder
	_, err = io.Copy(&buf, resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "token_requests_total")
}

func TestValidateMappers(t *testing.T) {
	f := setupServerFixture(t)
	require.NoError(t, server.ValidateMappers(f.repos))

	require.NoError(t, f.repos.Clients.Upsert(&clients.Client{
		ClientID: "broken",
		RealmID:  testRealmID,
		ProtocolMappers: []mappers.Model{
			mappers.NewHardcodedClaim("bad", "n", "abc", "long", true, true),
		},
	}))
	err := server.ValidateMappers(f.repos)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestBootstrap(t *testing.T) {
	t.Setenv("BOOTSTRAP_REALM", "master")
	repos := auth.Repos{
		Realms:  realmrepofakes.NewFakeRealmRepo(),
		Clients: clientrepofakes.NewFakeClientRepo(),
		Users:   userrepofakes.NewFakeUserRepo(),
	}
	tokens := token.New()

	password, err := server.Bootstrap(config.New(), repos, tokens)
	require.NoError(t, err)
	require.NotEmpty(t, password)

	realm, err := repos.Realms.Get("master")
	require.NoError(t, err)
	require.True(t, token.HasKeyMaterial(realm))
	_, err = repos.Clients.Get("master", clients.AccountClientID)
	require.NoError(t, err)
	admin, err := repos.Users.GetByUsername("master", server.DefaultSuperAdminUsername)
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash(password, admin.Credentials.PasswordHash))
	require.True(t, admin.HasRequiredActions())

	again, err := server.Bootstrap(config.New(), repos, tokens)
	require.NoError(t, err)
	require.Empty(t, again, "an existing admin keeps its password")
}

func (f *serverFixture) passwordForm() url.Values {
	return url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"username":      {testUsername},
		"password":      {testUserPassword},
	}
}

func (f *serverFixture) postTokenWithProto(t *testing.T, proto string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.issuer+"/protocol/openid-connect/token", strings.NewReader(f.passwordForm().Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", proto)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *serverFixture) requireAllSSL(t *testing.T) {
	t.Helper()
	realm, err := f.repos.Realms.Get(testRealmID)
	require.NoError(t, err)
	realm.SSLRequired = realms.SSLRequiredAll
	require.NoError(t, f.repos.Realms.Upsert(realm))
}

func TestTokenEndpoint_ForwardedProtoFromUntrustedPeerIgnored(t *testing.T) {
	f := setupServerFixture(t)
	f.requireAllSSL(t)

	plain := f.postToken(t, f.passwordForm())
	require.Equal(t, http.StatusForbidden, plain.StatusCode)

	spoofed := f.postTokenWithProto(t, "https")
	require.Equal(t, http.StatusForbidden, spoofed.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(spoofed.Body).Decode(&body))
	require.Equal(t, "HTTPS required", body["error_description"])

	e, ok := f.recorder.Last()
	require.True(t, ok)
	require.Equal(t, events.LoginError, e.Type)
	require.Equal(t, apperrors.EventSSLRequired, e.Error)
}

func TestTokenEndpoint_ForwardedProtoFromTrustedProxy(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "127.0.0.1/32, ::1")
	f := setupServerFixture(t)
	f.requireAllSSL(t)

	resp := f.postTokenWithProto(t, "https")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	insecure := f.postTokenWithProto(t, "http")
	require.Equal(t, http.StatusForbidden, insecure.StatusCode)
}

func TestNew_RejectsMalformedTrustedProxies(t *testing.T) {
	f := setupServerFixture(t)
	t.Setenv("TRUSTED_PROXIES", "proxy.internal")

	_, err := server.New(config.New(), f.service)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestTokenEndpoint_MalformedFormEmitsEvent(t *testing.T) {
	f := setupServerFixture(t)
	f.recorder.Reset()

	resp, err := http.Post(f.issuer+"/protocol/openid-connect/token", "application/x-www-form-urlencoded", strings.NewReader("grant_type=%zz"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, apperrors.CodeInvalidRequest, body["error"])

	recorded := f.recorder.Events()
	require.Len(t, recorded, 1)
	require.Equal(t, events.LoginError, recorded[0].Type)
	require.Equal(t, apperrors.EventInvalidRequest, recorded[0].Error)
	require.Equal(t, testRealmID, recorded[0].RealmID)
	require.Equal(t, "127.0.0.1", recorded[0].IPAddress)
}
