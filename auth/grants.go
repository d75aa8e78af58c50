package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-exchange/clients"
	"github.com/jrsteele09/go-token-exchange/events"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// GrantedApplication is one entry of a user's granted applications list.
type GrantedApplication struct {
	ClientID       string    `json:"clientId"`
	Name           string    `json:"name,omitempty"`
	GrantedRoles   []string  `json:"grantedRoles"`
	GrantedMappers []string  `json:"grantedProtocolMappers"`
	CreatedAt      time.Time `json:"createdDate"`
	UpdatedAt      time.Time `json:"lastUpdatedDate"`
}

// GrantedApplications lists the clients userID has consented to.
func (as *AuthorizationService) GrantedApplications(ctx context.Context, realmID, userID string) ([]GrantedApplication, error) {
	realm, err := as.Realm(realmID)
	if err != nil {
		return nil, err
	}
	if _, err := as.repos.Users.GetByID(realm.ID, userID); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.GrantedApplications] user")
	}

	consents, err := as.repos.Consents.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.GrantedApplications] list")
	}
	apps := make([]GrantedApplication, 0, len(consents))
	for _, c := range consents {
		client, err := as.repos.Clients.Get(realm.ID, c.ClientID)
		if err != nil {
			// consent outlived its client
			log.Debug().Str("realm", realm.ID).Str("client", c.ClientID).Msg("skipping consent of unknown client")
			continue
		}
		apps = append(apps, GrantedApplication{
			ClientID:       c.ClientID,
			Name:           client.Name,
			GrantedRoles:   c.GrantedRoles,
			GrantedMappers: c.GrantedMappers,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return apps, nil
}

// RevokeGrant removes userID's consent for clientID and ends the sessions that client took
// part in, so the next login asks for consent again.
func (as *AuthorizationService) RevokeGrant(ctx context.Context, realmID, userID, clientID string) error {
	realm, err := as.Realm(realmID)
	if err != nil {
		return err
	}
	if _, err := as.repos.Users.GetByID(realm.ID, userID); err != nil {
		return errors.Wrap(err, "[AuthorizationService.RevokeGrant] user")
	}

	existed, err := as.repos.Consents.Revoke(ctx, userID, clientID)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.RevokeGrant] revoke")
	}
	if !existed {
		return errors.Wrapf(apperrors.ErrNotFound, "no consent for client %s", clientID)
	}
	ended, err := as.repos.Sessions.DeleteByUserAndClient(realm.ID, userID, clientID)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.RevokeGrant] sessions")
	}
	log.Debug().Str("realm", realm.ID).Str("client", clientID).Int("sessions", ended).Msg("grant revoked")

	e := &events.Event{
		Type:     events.RevokeGrant,
		Time:     as.nowTime(),
		RealmID:  realm.ID,
		ClientID: clients.AccountClientID,
		UserID:   userID,
	}
	as.send(ctx, e.Detail(events.DetailRevokedClient, clientID))
	return nil
}
