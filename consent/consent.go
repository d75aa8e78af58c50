package consent

import (
	"context"
	"slices"
	"time"

	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/roles"
)

// Consent is what a user has allowed a client to receive.
type Consent struct {
	UserID         string    `json:"user_id"`
	ClientID       string    `json:"client_id"`
	GrantedRoles   []string  `json:"granted_roles"`   // qualified role names
	GrantedMappers []string  `json:"granted_mappers"` // protocol mapper names
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsRoleGranted reports whether the qualified role has been consented to.
func (c *Consent) IsRoleGranted(qualified string) bool {
	return c != nil && slices.Contains(c.GrantedRoles, qualified)
}

// IsMapperGranted reports whether the named mapper has been consented to.
func (c *Consent) IsMapperGranted(name string) bool {
	return c != nil && slices.Contains(c.GrantedMappers, name)
}

// Store persists consents. Grants for different (user, client) pairs never contend.
type Store interface {
	// Grant creates or replaces the consent of userID for clientID
	Grant(ctx context.Context, userID, clientID string, roles, mapperNames []string) (*Consent, error)
	// Revoke removes the consent and reports whether one existed
	Revoke(ctx context.Context, userID, clientID string) (bool, error)
	// Lookup returns the consent, or nil without error when there is none
	Lookup(ctx context.Context, userID, clientID string) (*Consent, error)
	// List returns every consent of userID ordered by client id
	List(ctx context.Context, userID string) ([]*Consent, error)
}

// Pending returns the requested roles and consent-requiring mappers that c does not cover yet.
// A nil consent leaves everything pending.
func Pending(c *Consent, requested *roles.Set, requestedMappers []mappers.Model) (*roles.Set, []mappers.Model) {
	pendingRoles := roles.New()
	if requested != nil {
		pendingRoles = requested.Filter(func(clientID, role string) bool {
			return !c.IsRoleGranted(roles.Qualify(clientID, role))
		})
	}
	var pendingMappers []mappers.Model
	for _, m := range requestedMappers {
		if m.ConsentRequired && !c.IsMapperGranted(m.Name) {
			pendingMappers = append(pendingMappers, m)
		}
	}
	return pendingRoles, pendingMappers
}

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithNowFunc replaces the wall clock used for created and updated times.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func normalise(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
