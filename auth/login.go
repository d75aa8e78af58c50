package auth

import (
	"context"
	"slices"
	"time"

	"github.com/jrsteele09/go-token-exchange/clients"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/jrsteele09/go-token-exchange/consent"
	"github.com/jrsteele09/go-token-exchange/events"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/roles"
	"github.com/jrsteele09/go-token-exchange/sessions"
	"github.com/pkg/errors"
)

// ConsentDecision is the user's answer on the grant page.
type ConsentDecision int

const (
	ConsentNotAsked ConsentDecision = iota // the grant page has not been shown yet
	ConsentAccepted
	ConsentDenied
)

// LoginCompletion is an authenticated browser login that wants an authorization code.
// Authenticating the user is the caller's job; UserID is the user it authenticated.
type LoginCompletion struct {
	RealmID     string
	ClientID    string
	RedirectURI string
	Scope       string
	Nonce       string
	UserID      string
	SessionID   string // continue this SSO session when it is still live
	IPAddress   string
	RememberMe  bool
	Consent     ConsentDecision
}

// LoginResult is either an issued code or a request to show the grant page.
type LoginResult struct {
	Code      *codes.Code
	SessionID string

	// ConsentRequired is set when the client needs consent the user has not given yet.
	// PendingRoles and PendingMappers are what the grant page should list.
	ConsentRequired bool
	PendingRoles    *roles.Set
	PendingMappers  []mappers.Model
}

// CompleteLogin finishes an interactive login: it checks the client and redirect URI, starts
// or continues the SSO session, settles consent and issues an authorization code.
func (as *AuthorizationService) CompleteLogin(ctx context.Context, lc LoginCompletion) (*LoginResult, error) {
	now := as.nowTime()
	e := &events.Event{
		Type:      events.Login,
		Time:      now,
		RealmID:   lc.RealmID,
		ClientID:  lc.ClientID,
		UserID:    lc.UserID,
		IPAddress: lc.IPAddress,
	}
	e.Detail(events.DetailAuthMethod, events.AuthMethodOIDC).
		Detail(events.DetailRedirectURI, lc.RedirectURI)

	result, err := as.completeLogin(ctx, lc, e)
	if err != nil {
		appErr, ok := apperrors.AsError(err)
		if !ok {
			appErr = apperrors.ServerError(err)
		}
		e.Type = events.LoginError
		e.Error = appErr.EventError
		if e.Error == "" {
			e.Error = appErr.Code
		}
		as.send(ctx, e)
		return nil, appErr
	}
	if result.ConsentRequired {
		// nothing has been decided yet; the event is sent once the user answers
		return result, nil
	}
	as.send(ctx, e)
	return result, nil
}

func (as *AuthorizationService) completeLogin(ctx context.Context, lc LoginCompletion, e *events.Event) (*LoginResult, error) {
	now := e.Time
	realm, err := as.Realm(lc.RealmID)
	if err != nil {
		return nil, err
	}
	if !realm.Enabled {
		return nil, RealmDisabledErr
	}

	client, err := as.repos.Clients.Get(realm.ID, lc.ClientID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ClientNotFoundErr
		}
		return nil, errors.Wrap(err, "[AuthorizationService.CompleteLogin] client")
	}
	if !client.Enabled {
		return nil, ClientDisabledErr
	}
	if client.BearerOnly {
		return nil, BearerOnlyErr
	}
	if !client.ValidRedirectURI(lc.RedirectURI) {
		return nil, InvalidRedirectErr
	}
	template := as.clientTemplate(client)

	user, err := as.activeUser(realm.ID, lc.UserID)
	if err != nil {
		return nil, err
	}
	e.Detail(events.DetailUsername, user.Username)

	session, err := as.loginSession(lc, user.ID, now)
	if err != nil {
		return nil, err
	}
	if session == nil {
		notes := map[string]string{sessions.NoteAuthMethod: events.AuthMethodOIDC}
		if lc.RememberMe {
			notes[sessions.NoteRememberMe] = "true"
		}
		if session, err = as.newSession(realm, user, lc.IPAddress, notes, now); err != nil {
			return nil, err
		}
	}
	e.SessionID = session.ID

	if client.RequiresConsent(template) {
		existing, err := as.repos.Consents.Lookup(ctx, user.ID, client.ClientID)
		if err != nil {
			return nil, errors.Wrap(err, "[AuthorizationService.CompleteLogin] consent lookup")
		}
		requested := clients.EffectiveScope(client, template, user.Roles(), clients.DefinedIn(realm, as.repos.Clients))
		pendingRoles, pendingMappers := consent.Pending(existing, requested, clients.EffectiveMappers(client, template))

		switch {
		case pendingRoles.IsEmpty() && len(pendingMappers) == 0:
			e.Detail(events.DetailConsent, events.ConsentPersisted)
		case lc.Consent == ConsentDenied:
			return nil, ConsentDeniedErr
		case lc.Consent == ConsentAccepted:
			if err := as.grantConsent(ctx, user.ID, client.ClientID, existing, pendingRoles, pendingMappers); err != nil {
				return nil, err
			}
			e.Detail(events.DetailConsent, events.ConsentGranted)
		default:
			return &LoginResult{
				SessionID:       session.ID,
				ConsentRequired: true,
				PendingRoles:    pendingRoles,
				PendingMappers:  pendingMappers,
			}, nil
		}
	} else {
		e.Detail(events.DetailConsent, events.ConsentNotNeeded)
	}

	code, err := as.repos.Codes.Issue(ctx, codes.IssueRequest{
		SessionID:   session.ID,
		UserID:      user.ID,
		RealmID:     realm.ID,
		ClientID:    client.ClientID,
		RedirectURI: lc.RedirectURI,
		Scope:       lc.Scope,
		Nonce:       lc.Nonce,
		Lifespan:    realm.AccessCodeLifespan,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.CompleteLogin] issue code")
	}
	e.Detail(events.DetailCodeID, codes.EventID(code.ID))
	return &LoginResult{Code: code, SessionID: session.ID}, nil
}

// loginSession returns the session named by lc when it is still live for userID, refreshed to now.
func (as *AuthorizationService) loginSession(lc LoginCompletion, userID string, now time.Time) (*sessions.UserSession, error) {
	if lc.SessionID == "" {
		return nil, nil
	}
	session, err := as.liveSession(lc.RealmID, lc.SessionID, userID, now)
	if err != nil {
		if errors.Is(err, SessionNotActiveErr) {
			return nil, nil
		}
		return nil, err
	}
	if err := as.repos.Sessions.Touch(lc.RealmID, session.ID, now); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.loginSession] touch")
	}
	return session, nil
}

// grantConsent adds the pending roles and mappers to what the user granted before.
func (as *AuthorizationService) grantConsent(ctx context.Context, userID, clientID string, existing *consent.Consent, pendingRoles *roles.Set, pendingMappers []mappers.Model) error {
	var grantedRoles, grantedMappers []string
	if existing != nil {
		grantedRoles = slices.Clone(existing.GrantedRoles)
		grantedMappers = slices.Clone(existing.GrantedMappers)
	}
	grantedRoles = append(grantedRoles, pendingRoles.Qualified()...)
	for _, m := range pendingMappers {
		grantedMappers = append(grantedMappers, m.Name)
	}
	if _, err := as.repos.Consents.Grant(ctx, userID, clientID, grantedRoles, grantedMappers); err != nil {
		return errors.Wrap(err, "[AuthorizationService.grantConsent]")
	}
	return nil
}
