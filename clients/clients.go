package clients

import (
	"slices"
	"strings"

	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/roles"
)

// AccountClientID is the built-in client the account console acts through.
const AccountClientID = "account"

// ScopeMappings lists the roles a client (or template) may place in its tokens.
type ScopeMappings struct {
	Realm   []string            `json:"realm,omitempty"`
	Clients map[string][]string `json:"clients,omitempty"` // client id -> role names
}

// Set returns the mappings as a role set.
func (s ScopeMappings) Set() *roles.Set {
	return roles.FromLists(s.Realm, s.Clients)
}

func (s ScopeMappings) clone() ScopeMappings {
	c := ScopeMappings{Realm: slices.Clone(s.Realm)}
	if s.Clients != nil {
		c.Clients = make(map[string][]string, len(s.Clients))
		for k, v := range s.Clients {
			c.Clients[k] = slices.Clone(v)
		}
	}
	return c
}

type Client struct {
	ClientID                  string          `json:"clientId"`
	Name                      string          `json:"name"`
	RealmID                   string          `json:"realmId"`
	Secret                    string          `json:"secret"`
	Enabled                   bool            `json:"enabled"`
	BearerOnly                bool            `json:"bearerOnly"` // never receives tokens, only verifies them
	PublicClient              bool            `json:"publicClient"`
	DirectAccessGrantsEnabled bool            `json:"directAccessGrantsEnabled"`
	FullScopeAllowed          bool            `json:"fullScopeAllowed"`
	ConsentRequired           bool            `json:"consentRequired"`
	RedirectURIs              []string        `json:"redirectUris"`
	Roles                     []string        `json:"roles"` // client roles defined by this client
	Template                  string          `json:"clientTemplate,omitempty"`
	UseTemplateConfig         bool            `json:"useTemplateConfig"`
	UseTemplateScope          bool            `json:"useTemplateScope"`
	UseTemplateMappers        bool            `json:"useTemplateMappers"`
	ProtocolMappers           []mappers.Model `json:"protocolMappers,omitempty"`
	ScopeMappings             ScopeMappings   `json:"scopeMappings"`
}

// IsPublic returns true if the client cannot keep a secret
func (c *Client) IsPublic() bool {
	return c.PublicClient
}

// HasRole reports whether the client defines role.
func (c *Client) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// RemoveRole deletes a client role definition.
func (c *Client) RemoveRole(role string) {
	c.Roles = slices.DeleteFunc(c.Roles, func(s string) bool { return s == role })
}

// ValidRedirectURI reports whether uri matches one of the registered redirect URIs.
// A registered value ending in "*" matches by prefix.
func (c *Client) ValidRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if prefix, ok := strings.CutSuffix(registered, "*"); ok {
			if strings.HasPrefix(uri, prefix) {
				return true
			}
			continue
		}
		if registered == uri {
			return true
		}
	}
	return false
}

// RequiresConsent reports whether the user must grant access before a code is issued.
func (c *Client) RequiresConsent(t *Template) bool {
	if c.UseTemplateConfig && t != nil {
		return t.ConsentRequired
	}
	return c.ConsentRequired
}

// Clone returns a deep copy used as a per-request snapshot.
func (c *Client) Clone() *Client {
	cp := *c
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	cp.Roles = slices.Clone(c.Roles)
	cp.ProtocolMappers = cloneMappers(c.ProtocolMappers)
	cp.ScopeMappings = c.ScopeMappings.clone()
	return &cp
}

func cloneMappers(models []mappers.Model) []mappers.Model {
	if models == nil {
		return nil
	}
	out := make([]mappers.Model, len(models))
	for i, m := range models {
		out[i] = m
		if m.Config != nil {
			out[i].Config = make(map[string]string, len(m.Config))
			for k, v := range m.Config {
				out[i].Config[k] = v
			}
		}
	}
	return out
}

// SplitScope splits a space separated scope parameter.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// HasScope reports whether the space separated scope parameter contains s.
func HasScope(scope, s string) bool {
	return slices.Contains(SplitScope(scope), s)
}
