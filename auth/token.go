package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/jrsteele09/go-token-exchange/clients"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/jrsteele09/go-token-exchange/credentials"
	"github.com/jrsteele09/go-token-exchange/events"
	"github.com/jrsteele09/go-token-exchange/federation"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/sessions"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// tokenRequest is the state of one token endpoint call. Realm, client and template are read
// once and used as a snapshot for the rest of the request.
type tokenRequest struct {
	req      *oauth2.TokenRequest
	now      time.Time
	event    *events.Event
	realm    *realms.Realm
	client   *clients.Client
	template *clients.Template
}

// grant is what a successful grant resolves to.
type grant struct {
	user           *users.User
	session        *sessions.UserSession
	scope          string
	nonce          string
	includeIDToken bool
}

// Token handles a token endpoint request. Every call emits exactly one audit event. Errors
// returned are always *apperrors.Error carrying the HTTP status and OAuth2 error code.
func (as *AuthorizationService) Token(ctx context.Context, req *oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	tr := &tokenRequest{
		req: req,
		now: as.nowTime(),
		event: &events.Event{
			Type:      eventTypeFor(req.GrantType),
			RealmID:   req.RealmID,
			ClientID:  req.ClientID,
			IPAddress: req.RemoteAddr,
		},
	}
	tr.event.Time = tr.now

	resp, err := as.token(ctx, tr)
	if err != nil {
		appErr := as.reject(tr, err)
		as.send(ctx, tr.event)
		return nil, appErr
	}
	as.send(ctx, tr.event)
	return resp, nil
}

// RejectMalformed answers a token request whose form could not be read. It emits the
// request's single LOGIN_ERROR event.
func (as *AuthorizationService) RejectMalformed(ctx context.Context, realmID, remoteAddr string, cause error) error {
	now := as.nowTime()
	tr := &tokenRequest{
		req: &oauth2.TokenRequest{RealmID: realmID, RemoteAddr: remoteAddr},
		now: now,
		event: &events.Event{
			Type:      events.Login,
			Time:      now,
			RealmID:   realmID,
			IPAddress: remoteAddr,
		},
	}
	appErr := as.reject(tr, MalformedRequestErr.WithCause(cause))
	as.send(ctx, tr.event)
	return appErr
}

func eventTypeFor(grantType oauth2.GrantType) events.Type {
	switch grantType {
	case oauth2.AuthorizationCodeGrant:
		return events.CodeToToken
	case oauth2.RefreshTokenGrant:
		return events.RefreshToken
	}
	return events.Login
}

func errorTypeFor(t events.Type) events.Type {
	switch t {
	case events.CodeToToken:
		return events.CodeToTokenError
	case events.RefreshToken:
		return events.RefreshTokenError
	}
	return events.LoginError
}

// reject turns err into the classified error returned to the caller and marks the event as failed.
func (as *AuthorizationService) reject(tr *tokenRequest, err error) *apperrors.Error {
	appErr, ok := apperrors.AsError(err)
	if !ok {
		appErr = apperrors.ServerError(err)
	}
	if appErr.Code == apperrors.CodeServerError {
		log.Err(err).Str("realm", tr.req.RealmID).Str("client", tr.req.ClientID).Msg("token request failed")
	}

	e := tr.event
	e.Type = errorTypeFor(e.Type)
	e.Error = appErr.EventError
	if e.Error == "" {
		e.Error = appErr.Code
	}
	e.RemoveDetail(events.DetailTokenID).
		RemoveDetail(events.DetailRefreshTokenID).
		RemoveDetail(events.DetailRefreshTokenType)
	if appErr.Kind == apperrors.KindClient {
		e.UserID = ""
		e.SessionID = ""
		e.Details = nil
	}
	return appErr
}

func (as *AuthorizationService) token(ctx context.Context, tr *tokenRequest) (*oauth2.TokenResponse, error) {
	if err := as.checkRealm(tr); err != nil {
		return nil, err
	}
	if err := as.authenticateClient(tr); err != nil {
		return nil, err
	}

	var (
		g   *grant
		err error
	)
	switch tr.req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		g, err = as.codeGrant(ctx, tr)
	case oauth2.PasswordGrant:
		g, err = as.passwordGrant(ctx, tr)
	case oauth2.RefreshTokenGrant:
		g, err = as.refreshGrant(tr)
	default:
		return nil, UnsupportedGrantErr
	}
	if err != nil {
		return nil, err
	}
	return as.issue(tr, g)
}

func (as *AuthorizationService) checkRealm(tr *tokenRequest) error {
	realm, err := as.Realm(tr.req.RealmID)
	if err != nil {
		return err
	}
	if !tr.req.Secure && realm.SSLRequiredFor(tr.req.RemoteAddr) {
		return SSLRequiredErr
	}
	if !realm.Enabled {
		return RealmDisabledErr
	}
	tr.realm = realm
	return nil
}

// authenticateClient resolves the client and checks its secret. Public clients present none.
func (as *AuthorizationService) authenticateClient(tr *tokenRequest) error {
	if tr.req.ClientID == "" {
		return ClientNotFoundErr
	}
	client, err := as.repos.Clients.Get(tr.realm.ID, tr.req.ClientID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ClientNotFoundErr
		}
		return apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.authenticateClient]"))
	}
	if !client.Enabled {
		return ClientDisabledErr
	}
	if client.BearerOnly {
		return BearerOnlyErr
	}
	if !client.IsPublic() {
		if tr.req.ClientSecret == "" || subtle.ConstantTimeCompare([]byte(tr.req.ClientSecret), []byte(client.Secret)) != 1 {
			return ClientCredentialsErr
		}
	}
	tr.client = client
	tr.template = as.clientTemplate(client)
	return nil
}

func (as *AuthorizationService) codeGrant(ctx context.Context, tr *tokenRequest) (*grant, error) {
	tr.event.Detail(events.DetailCodeID, codes.EventID(tr.req.Code))

	code, err := as.repos.Codes.Consume(ctx, tr.req.Code, tr.client.ClientID, tr.req.RedirectURI)
	if code != nil {
		tr.event.UserID = code.UserID
		tr.event.SessionID = code.SessionID
	}
	switch {
	case errors.Is(err, codes.ErrRedirectMismatch):
		return nil, IncorrectRedirectErr
	case errors.Is(err, codes.ErrCodeExpired):
		tr.event.SessionID = ""
		tr.event.UserID = ""
		return nil, CodeExpiredErr
	case errors.Is(err, codes.ErrInvalidCode):
		tr.event.UserID = ""
		return nil, CodeNotValidErr
	case err != nil:
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.codeGrant] consume"))
	}
	if code.RealmID != tr.realm.ID {
		return nil, CodeNotValidErr
	}

	session, err := as.liveSession(tr.realm.ID, code.SessionID, code.UserID, tr.now)
	if err != nil {
		if errors.Is(err, SessionNotActiveErr) {
			return nil, CodeNotValidErr
		}
		return nil, err
	}
	user, err := as.activeUser(tr.realm.ID, code.UserID)
	if err != nil {
		return nil, err
	}
	return &grant{
		user:           user,
		session:        session,
		scope:          code.Scope,
		nonce:          code.Nonce,
		includeIDToken: clients.HasScope(code.Scope, oauth2.ScopeOpenID),
	}, nil
}

func (as *AuthorizationService) passwordGrant(ctx context.Context, tr *tokenRequest) (*grant, error) {
	if !tr.client.DirectAccessGrantsEnabled {
		return nil, DirectGrantErr
	}
	tr.event.Detail(events.DetailAuthMethod, events.AuthMethodCredentials).
		Detail(events.DetailGrantType, string(oauth2.PasswordGrant))
	if tr.req.Username == "" || tr.req.Password == "" {
		return nil, UserCredentialsErr
	}
	tr.event.Detail(events.DetailUsername, tr.req.Username)

	user, err := as.directory.FindByUsernameOrEmail(ctx, tr.realm.ID, tr.req.Username)
	if err != nil {
		if errors.Is(err, federation.ErrModelConflict) {
			return nil, UserConflictErr.WithCause(err)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Str("realm", tr.realm.ID).Msg("user lookup failed")
		}
		return nil, UserCredentialsErr
	}
	tr.event.UserID = user.ID

	presented := []credentials.Input{credentials.Password(tr.req.Password)}
	if tr.req.TOTP != "" || user.Credentials.TOTPSecret != "" {
		presented = append(presented, credentials.TOTP(tr.req.TOTP))
	}
	if !as.validator.Validate(ctx, tr.realm, user, presented) {
		return nil, UserCredentialsErr
	}
	if err := checkUserState(user); err != nil {
		return nil, err
	}

	session, err := as.newSession(tr.realm, user, tr.req.RemoteAddr, map[string]string{sessions.NoteAuthMethod: events.AuthMethodCredentials}, tr.now)
	if err != nil {
		return nil, err
	}
	tr.event.SessionID = session.ID
	return &grant{
		user:           user,
		session:        session,
		scope:          tr.req.Scope,
		includeIDToken: true,
	}, nil
}

// refreshGrant verifies the presented refresh token and revokes it, so each refresh token is
// usable once.
func (as *AuthorizationService) refreshGrant(tr *tokenRequest) (*grant, error) {
	tr.event.Detail(events.DetailRefreshTokenType, events.RefreshTypeRefresh)
	parsed, err := as.tokens.Verify(tr.realm, as.Issuer(tr.realm), tr.req.RefreshToken, token.TypeRefresh)
	if err != nil {
		return nil, InvalidRefreshErr.WithCause(err)
	}
	tr.event.UserID = parsed.Subject
	tr.event.SessionID = parsed.SessionID

	if parsed.ClientID != tr.client.ClientID {
		return nil, RefreshClientErr
	}
	if tr.realm.NotBefore > 0 && parsed.IssuedAt.Unix() < tr.realm.NotBefore {
		return nil, StaleRefreshErr
	}
	session, err := as.liveSession(tr.realm.ID, parsed.SessionID, parsed.Subject, tr.now)
	if err != nil {
		return nil, err
	}
	user, err := as.activeUser(tr.realm.ID, parsed.Subject)
	if err != nil {
		return nil, err
	}

	if err := as.tokens.Revoke(parsed.ID, parsed.ExpiresAt); err != nil {
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.refreshGrant] revoke"))
	}
	if err := as.repos.Sessions.Touch(tr.realm.ID, session.ID, tr.now); err != nil {
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.refreshGrant] touch"))
	}
	session.LastRefresh = tr.now

	return &grant{
		user:           user,
		session:        session,
		scope:          parsed.Scope,
		includeIDToken: clients.HasScope(parsed.Scope, oauth2.ScopeOpenID),
	}, nil
}

// issue maps and signs the tokens of a successful grant.
func (as *AuthorizationService) issue(tr *tokenRequest, g *grant) (*oauth2.TokenResponse, error) {
	realm, client := tr.realm, tr.client
	issuer := as.Issuer(realm)

	effective := clients.EffectiveScope(client, tr.template, g.user.Roles(), clients.DefinedIn(realm, as.repos.Clients))
	models := clients.EffectiveMappers(client, tr.template)
	in := mappers.Input{Subject: g.user.Subject(), Roles: effective}

	base := token.MintRequest{
		Realm:     realm,
		Issuer:    issuer,
		ClientID:  client.ClientID,
		UserID:    g.user.ID,
		SessionID: g.session.ID,
		Scope:     g.scope,
	}

	accessResult := mappers.Apply(models, mappers.AccessToken, in)
	accessReq := base
	accessReq.Type = token.TypeBearer
	accessReq.ExpiresAt = tr.now.Add(realm.AccessTokenLifespan)
	accessReq.Roles = accessResult.Roles
	accessReq.Claims = accessResult.Claims
	access, err := as.tokens.Mint(accessReq)
	if err != nil {
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.issue] access token"))
	}

	refreshReq := base
	refreshReq.Type = token.TypeRefresh
	refreshReq.ExpiresAt = g.session.RefreshExpiry(tr.now)
	refresh, err := as.tokens.Mint(refreshReq)
	if err != nil {
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.issue] refresh token"))
	}

	resp := &oauth2.TokenResponse{
		AccessToken:      access.Raw,
		ExpiresIn:        int64(realm.AccessTokenLifespan / time.Second),
		RefreshToken:     refresh.Raw,
		RefreshExpiresIn: int64(refreshReq.ExpiresAt.Sub(tr.now) / time.Second),
		TokenType:        oauth2.TokenTypeBearer,
		NotBeforePolicy:  realm.NotBefore,
		SessionState:     g.session.ID,
		Scope:            g.scope,
	}

	if g.includeIDToken {
		idResult := mappers.Apply(models, mappers.IDToken, in)
		idReq := base
		idReq.Type = token.TypeID
		idReq.ExpiresAt = accessReq.ExpiresAt
		idReq.Nonce = g.nonce
		idReq.AuthTime = g.session.Started
		idReq.Claims = idResult.Claims
		id, err := as.tokens.Mint(idReq)
		if err != nil {
			return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.issue] id token"))
		}
		resp.IDToken = id.Raw
	}

	if !g.session.HasClient(client.ClientID) {
		if err := as.repos.Sessions.AddClient(realm.ID, g.session.ID, client.ClientID); err != nil {
			return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.issue] session client"))
		}
	}

	tr.event.UserID = g.user.ID
	tr.event.SessionID = g.session.ID
	tr.event.Detail(events.DetailTokenID, access.ID).
		Detail(events.DetailRefreshTokenID, refresh.ID).
		Detail(events.DetailRefreshTokenType, events.RefreshTypeRefresh)
	return resp, nil
}
