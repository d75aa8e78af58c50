package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-exchange/clients"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/jrsteele09/go-token-exchange/consent"
	"github.com/jrsteele09/go-token-exchange/credentials"
	"github.com/jrsteele09/go-token-exchange/events"
	"github.com/jrsteele09/go-token-exchange/federation"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/sessions"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "http://localhost:8080"

// Repos holds all repository and store dependencies for the AuthorizationService
type Repos struct {
	Realms    realms.Repo          // Realm configuration
	Clients   clients.Repo         // OAuth2 clients per realm
	Templates clients.TemplateRepo // Client templates, optional
	Users     users.Repo           // Local users
	Sessions  sessions.Repo        // SSO sessions
	Codes     codes.Store          // Authorization codes
	Consents  consent.Store        // User consents per client
}

// AuthorizationService turns grants into tokens and manages the login and consent state they
// depend on.
type AuthorizationService struct {
	repos     Repos
	tokens    *token.Manager
	validator *credentials.Validator
	directory federation.UserDirectory
	events    events.Sink
	baseURL   string
	nowTime   func() time.Time // injectable for testing
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithCredentialValidator replaces the default local credential validator
func WithCredentialValidator(v *credentials.Validator) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.validator = v
	}
}

// WithUserDirectory resolves password grant usernames through d instead of the local user repo
func WithUserDirectory(d federation.UserDirectory) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.directory = d
	}
}

// WithEventSink sends audit events to sink instead of the log
func WithEventSink(sink events.Sink) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.events = sink
	}
}

// WithBaseURL sets the external URL realm issuers are built from
func WithBaseURL(baseURL string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.baseURL = baseURL
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(repos Repos, tokens *token.Manager, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if repos.Realms == nil {
		return nil, errors.New("[NewAuthorizationService] Realms repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Codes == nil {
		return nil, errors.New("[NewAuthorizationService] Codes store is required")
	}
	if repos.Consents == nil {
		return nil, errors.New("[NewAuthorizationService] Consents store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token manager is required")
	}

	as := &AuthorizationService{
		repos:   repos,
		tokens:  tokens,
		baseURL: defaultBaseURL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(as)
	}

	if as.validator == nil {
		as.validator = credentials.NewValidator(credentials.WithNowFunc(as.nowTime))
	}
	if as.directory == nil {
		as.directory = federation.NewRepoDirectory(repos.Users)
	}
	if as.events == nil {
		as.events = events.NewLogSink(nil)
	}
	return as, nil
}

// Issuer returns the issuer URL of a realm
func (as *AuthorizationService) Issuer(realm *realms.Realm) string {
	return realm.IssuerURL(as.baseURL)
}

// Realm returns an enabled realm
func (as *AuthorizationService) Realm(realmID string) (*realms.Realm, error) {
	realm, err := as.repos.Realms.Get(realmID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, RealmNotFoundErr
		}
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.Realm]"))
	}
	return realm, nil
}

// GetJWKS returns the JSON Web Key Set for public key distribution
func (as *AuthorizationService) GetJWKS(realmID string) (*token.JWKS, error) {
	realm, err := as.Realm(realmID)
	if err != nil {
		return nil, err
	}
	return as.tokens.GetJWKS(realm)
}

// clientTemplate returns the client's template, or nil when it has none or it no longer exists.
func (as *AuthorizationService) clientTemplate(client *clients.Client) *clients.Template {
	if client.Template == "" || as.repos.Templates == nil {
		return nil
	}
	t, err := as.repos.Templates.Get(client.RealmID, client.Template)
	if err != nil {
		log.Warn().Err(err).Str("client", client.ClientID).Str("template", client.Template).Msg("client template unavailable")
		return nil
	}
	return t
}

// activeUser loads a user and checks it may receive tokens.
func (as *AuthorizationService) activeUser(realmID, userID string) (*users.User, error) {
	user, err := as.repos.Users.GetByID(realmID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, UserNotFoundErr
		}
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.activeUser]"))
	}
	if err := checkUserState(user); err != nil {
		return nil, err
	}
	return user, nil
}

func checkUserState(user *users.User) error {
	if !user.Enabled {
		return UserDisabledErr
	}
	if user.HasRequiredActions() {
		return ActionRequiredErr
	}
	return nil
}

// liveSession returns the session if it exists, belongs to userID and has not expired.
func (as *AuthorizationService) liveSession(realmID, sessionID, userID string, now time.Time) (*sessions.UserSession, error) {
	session, err := as.repos.Sessions.Get(realmID, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, SessionNotActiveErr
		}
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.liveSession]"))
	}
	if session.UserID != userID || session.Expired(now) {
		return nil, SessionNotActiveErr
	}
	return session, nil
}

func (as *AuthorizationService) newSession(realm *realms.Realm, user *users.User, ipAddress string, notes map[string]string, now time.Time) (*sessions.UserSession, error) {
	session := &sessions.UserSession{
		RealmID:     realm.ID,
		UserID:      user.ID,
		Username:    user.Username,
		IPAddress:   ipAddress,
		Started:     now,
		LastRefresh: now,
		IdleTimeout: realm.SSOSessionIdleTimeout,
		MaxLifespan: realm.SSOSessionMaxLifespan,
		Notes:       notes,
	}
	if err := as.repos.Sessions.Create(session); err != nil {
		return nil, apperrors.ServerError(errors.Wrap(err, "[AuthorizationService.newSession]"))
	}
	return session, nil
}

func (as *AuthorizationService) send(ctx context.Context, e *events.Event) {
	as.events.Send(ctx, *e)
}

// VerifyAccessToken checks a bearer access token issued by the realm and that its session is
// still live. Every failure is BearerTokenErr.
func (as *AuthorizationService) VerifyAccessToken(realmID, raw string) (*token.Parsed, error) {
	realm, err := as.Realm(realmID)
	if err != nil {
		return nil, err
	}
	if !realm.Enabled {
		return nil, RealmDisabledErr
	}
	parsed, err := as.tokens.Verify(realm, as.Issuer(realm), raw, token.TypeBearer)
	if err != nil {
		return nil, BearerTokenErr.WithCause(err)
	}
	if _, err := as.liveSession(realm.ID, parsed.SessionID, parsed.Subject, as.nowTime()); err != nil {
		return nil, BearerTokenErr.WithCause(err)
	}
	return parsed, nil
}
