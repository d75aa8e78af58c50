package mappers

// Type identifies the rule a protocol mapper applies.
type Type string

const (
	// TypeHardcodedClaim writes a literal value at a claim path.
	// Config: claim.name, claim.value, jsonType.label
	TypeHardcodedClaim Type = "hardcoded-claim"

	// TypeUserAttribute copies a (possibly multi-valued) user attribute into a claim.
	// Config: user.attribute, claim.name, jsonType.label, multivalued
	TypeUserAttribute Type = "user-attribute"

	// TypeUserProperty copies a built-in user property (username, email, firstName, lastName, emailVerified).
	// Config: user.property, claim.name, jsonType.label
	TypeUserProperty Type = "user-property"

	// TypeFullName writes "First Last" into the "name" claim.
	TypeFullName Type = "full-name"

	// TypeAddress aggregates the street, locality, region, postal_code and country attributes
	// into the structured "address" claim.
	TypeAddress Type = "address"

	// TypeRoleName rewrites a role. Config: role, new.role.name.
	// Either value may be qualified as "<clientId>.<role>".
	TypeRoleName Type = "role-name"

	// TypeHardcodedRole always adds a role, whatever the user was granted. Config: role
	TypeHardcodedRole Type = "hardcoded-role"
)

// Config keys
const (
	ConfigClaimName     = "claim.name"
	ConfigClaimValue    = "claim.value"
	ConfigJSONType      = "jsonType.label"
	ConfigUserAttribute = "user.attribute"
	ConfigUserProperty  = "user.property"
	ConfigMultivalued   = "multivalued"
	ConfigRole          = "role"
	ConfigNewRoleName   = "new.role.name"
)

// TokenKind is the kind of token a mapper contributes to.
type TokenKind string

const (
	AccessToken TokenKind = "access"
	IDToken     TokenKind = "id"
	UserInfo    TokenKind = "userinfo"
)

// Model is a named, configured protocol mapper attached to a client or client template.
type Model struct {
	Name            string            `json:"name"`
	Type            Type              `json:"type"`
	Config          map[string]string `json:"config,omitempty"`
	AccessToken     bool              `json:"accessToken"`     // include in access tokens
	IDToken         bool              `json:"idToken"`         // include in ID tokens
	UserInfo        bool              `json:"userInfo"`        // include in the userinfo response
	ConsentRequired bool              `json:"consentRequired"` // user must consent to this mapper
	ConsentText     string            `json:"consentText,omitempty"`
}

// AppliesTo reports whether the mapper's inclusion flag for kind is set.
func (m Model) AppliesTo(kind TokenKind) bool {
	switch kind {
	case AccessToken:
		return m.AccessToken
	case IDToken:
		return m.IDToken
	case UserInfo:
		return m.UserInfo
	}
	return false
}

// DisplayText is what a consent screen shows for the mapper.
func (m Model) DisplayText() string {
	if m.ConsentText != "" {
		return m.ConsentText
	}
	return m.Name
}

func (m Model) config(key string) string {
	if m.Config == nil {
		return ""
	}
	return m.Config[key]
}

// NewHardcodedClaim returns a hardcoded claim mapper.
func NewHardcodedClaim(name, claimPath, value, jsonType string, accessToken, idToken bool) Model {
	return Model{
		Name: name,
		Type: TypeHardcodedClaim,
		Config: map[string]string{
			ConfigClaimName:  claimPath,
			ConfigClaimValue: value,
			ConfigJSONType:   jsonType,
		},
		AccessToken: accessToken,
		IDToken:     idToken,
	}
}

// NewUserAttribute returns a user attribute mapper.
func NewUserAttribute(name, attribute, claimPath, jsonType string, accessToken, idToken, multivalued bool) Model {
	mv := "false"
	if multivalued {
		mv = "true"
	}
	return Model{
		Name: name,
		Type: TypeUserAttribute,
		Config: map[string]string{
			ConfigUserAttribute: attribute,
			ConfigClaimName:     claimPath,
			ConfigJSONType:      jsonType,
			ConfigMultivalued:   mv,
		},
		AccessToken: accessToken,
		IDToken:     idToken,
	}
}

// NewUserProperty returns a user property mapper.
func NewUserProperty(name, property, claimPath string, accessToken, idToken bool) Model {
	return Model{
		Name: name,
		Type: TypeUserProperty,
		Config: map[string]string{
			ConfigUserProperty: property,
			ConfigClaimName:    claimPath,
			ConfigJSONType:     "String",
		},
		AccessToken: accessToken,
		IDToken:     idToken,
	}
}

func NewFullName(name string, accessToken, idToken bool) Model {
	return Model{Name: name, Type: TypeFullName, AccessToken: accessToken, IDToken: idToken}
}

func NewAddress(name string, accessToken, idToken bool) Model {
	return Model{Name: name, Type: TypeAddress, AccessToken: accessToken, IDToken: idToken}
}

// NewRoleName returns a role rename mapper. Role mappers only shape access tokens.
func NewRoleName(name, role, newName string) Model {
	return Model{
		Name: name,
		Type: TypeRoleName,
		Config: map[string]string{
			ConfigRole:        role,
			ConfigNewRoleName: newName,
		},
		AccessToken: true,
	}
}

// NewHardcodedRole returns a hardcoded role mapper.
func NewHardcodedRole(name, role string) Model {
	return Model{
		Name:        name,
		Type:        TypeHardcodedRole,
		Config:      map[string]string{ConfigRole: role},
		AccessToken: true,
	}
}
