package clients

import "github.com/jrsteele09/go-token-exchange/mappers"

// Template is a reusable bundle of mappers, scope and config that clients can opt into.
type Template struct {
	Name             string          `json:"name"`
	RealmID          string          `json:"realmId"`
	FullScopeAllowed bool            `json:"fullScopeAllowed"`
	ConsentRequired  bool            `json:"consentRequired"`
	ProtocolMappers  []mappers.Model `json:"protocolMappers,omitempty"`
	ScopeMappings    ScopeMappings   `json:"scopeMappings"`
}

func (t *Template) Clone() *Template {
	cp := *t
	cp.ProtocolMappers = cloneMappers(t.ProtocolMappers)
	cp.ScopeMappings = t.ScopeMappings.clone()
	return &cp
}
