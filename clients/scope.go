package clients

import (
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/roles"
)

// RoleDefined reports whether a role still exists. clientID is empty for realm roles.
type RoleDefined func(clientID, role string) bool

// EffectiveScope returns the roles of user that client may place in its tokens.
//
// With full scope (on the client, or on its template when the template scope is used) every
// user role is in scope. Otherwise only roles in the client's scope mappings, the template's
// scope mappings (when used) and the client's own roles survive. Roles that are no longer
// defined are dropped either way.
func EffectiveScope(c *Client, t *Template, user *roles.Set, defined RoleDefined) *roles.Set {
	if user == nil {
		return roles.New()
	}
	useTemplate := c.UseTemplateScope && t != nil

	var effective *roles.Set
	if c.FullScopeAllowed || (useTemplate && t.FullScopeAllowed) {
		effective = user.Clone()
	} else {
		allowed := c.ScopeMappings.Set()
		for _, r := range c.Roles {
			allowed.AddClient(c.ClientID, r)
		}
		if useTemplate {
			allowed = allowed.Union(t.ScopeMappings.Set())
		}
		effective = user.Intersect(allowed)
	}

	if defined != nil {
		effective = effective.Filter(func(clientID, role string) bool {
			return defined(clientID, role)
		})
	}
	return effective
}

// EffectiveMappers returns the mappers run for client: the template's first when the client
// uses template mappers, then the client's own.
func EffectiveMappers(c *Client, t *Template) []mappers.Model {
	var out []mappers.Model
	if c.UseTemplateMappers && t != nil {
		out = append(out, t.ProtocolMappers...)
	}
	return append(out, c.ProtocolMappers...)
}

// DefinedIn returns a RoleDefined backed by the realm's role list and the client repo.
func DefinedIn(realm *realms.Realm, repo Repo) RoleDefined {
	known := make(map[string]*Client)
	return func(clientID, role string) bool {
		if clientID == "" {
			return realm.HasRole(role)
		}
		c, ok := known[clientID]
		if !ok {
			c, _ = repo.Get(realm.ID, clientID)
			known[clientID] = c
		}
		return c != nil && c.HasRole(role)
	}
}
