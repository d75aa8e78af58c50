package mappers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-token-exchange/roles"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Subject is the user data mappers read from.
type Subject struct {
	Username      string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Attributes    map[string][]string
}

// Input is what the pipeline maps: the subject and the scope filtered role set.
type Input struct {
	Subject Subject
	Roles   *roles.Set
}

// Result holds the realm and resource roles and the other claims contributed by mappers.
type Result struct {
	Roles  *roles.Set
	Claims Claims
}

// RealmRoles returns the sorted realm roles of the result
func (r *Result) RealmRoles() []string {
	return r.Roles.RealmRoles()
}

// ResourceRoles returns the client id to sorted role names map of the result
func (r *Result) ResourceRoles() map[string][]string {
	out := make(map[string][]string)
	for _, clientID := range r.Roles.Clients() {
		out[clientID] = r.Roles.ClientRoles(clientID)
	}
	return out
}

type applyFunc func(m Model, in Input, out *Result) error

var appliers = map[Type]applyFunc{
	TypeHardcodedClaim: applyHardcodedClaim,
	TypeUserAttribute:  applyUserAttribute,
	TypeUserProperty:   applyUserProperty,
	TypeFullName:       applyFullName,
	TypeAddress:        applyAddress,
	TypeRoleName:       applyRoleName,
	TypeHardcodedRole:  applyHardcodedRole,
}

// Apply runs models in order for one token kind. Mappers whose inclusion flag for kind is
// unset are skipped, and later mappers overwrite claims written by earlier ones.
// A mapper that fails on this subject's data is logged and skipped.
func Apply(models []Model, kind TokenKind, in Input) *Result {
	effective := in.Roles
	if effective == nil {
		effective = roles.New()
	}
	out := &Result{
		Roles:  effective.Clone(),
		Claims: make(Claims),
	}
	for _, m := range models {
		if !m.AppliesTo(kind) {
			continue
		}
		apply, ok := appliers[m.Type]
		if !ok {
			log.Warn().Str("mapper", m.Name).Str("type", string(m.Type)).Msg("unknown mapper type skipped")
			continue
		}
		if err := apply(m, in, out); err != nil {
			log.Err(err).Str("mapper", m.Name).Str("kind", string(kind)).Msg("mapper skipped")
		}
	}
	return out
}

func applyHardcodedClaim(m Model, _ Input, out *Result) error {
	v, err := convert(m.config(ConfigClaimValue), m.config(ConfigJSONType))
	if err != nil {
		return errors.Wrap(err, "[applyHardcodedClaim] convert")
	}
	out.Claims.Set(m.config(ConfigClaimName), v)
	return nil
}

func applyUserAttribute(m Model, in Input, out *Result) error {
	values := in.Subject.Attributes[m.config(ConfigUserAttribute)]
	if len(values) == 0 {
		return nil
	}
	jsonType := m.config(ConfigJSONType)
	if m.config(ConfigMultivalued) == "true" {
		list := make([]any, 0, len(values))
		for _, raw := range values {
			v, err := convert(raw, jsonType)
			if err != nil {
				return errors.Wrap(err, "[applyUserAttribute] convert")
			}
			list = append(list, v)
		}
		out.Claims.Set(m.config(ConfigClaimName), list)
		return nil
	}
	v, err := convert(values[0], jsonType)
	if err != nil {
		return errors.Wrap(err, "[applyUserAttribute] convert")
	}
	out.Claims.Set(m.config(ConfigClaimName), v)
	return nil
}

func applyUserProperty(m Model, in Input, out *Result) error {
	v, ok := userProperty(in.Subject, m.config(ConfigUserProperty))
	if !ok {
		return errors.Errorf("[applyUserProperty] unknown property %q", m.config(ConfigUserProperty))
	}
	if s, isString := v.(string); isString && s == "" {
		return nil
	}
	out.Claims.Set(m.config(ConfigClaimName), v)
	return nil
}

func userProperty(s Subject, property string) (any, bool) {
	switch property {
	case "username":
		return s.Username, true
	case "email":
		return s.Email, true
	case "emailVerified":
		return s.EmailVerified, true
	case "firstName":
		return s.FirstName, true
	case "lastName":
		return s.LastName, true
	}
	return nil, false
}

func applyFullName(_ Model, in Input, out *Result) error {
	name := strings.TrimSpace(in.Subject.FirstName + " " + in.Subject.LastName)
	if name == "" {
		return nil
	}
	out.Claims.Set("name", name)
	return nil
}

// address claim member -> user attribute
var addressAttributes = []struct{ claim, attribute string }{
	{"street_address", "street"},
	{"locality", "locality"},
	{"region", "region"},
	{"postal_code", "postal_code"},
	{"country", "country"},
	{"formatted", "formatted"},
}

func applyAddress(_ Model, in Input, out *Result) error {
	address := make(map[string]any)
	for _, a := range addressAttributes {
		if values := in.Subject.Attributes[a.attribute]; len(values) > 0 && values[0] != "" {
			address[a.claim] = values[0]
		}
	}
	if len(address) == 0 {
		return nil
	}
	out.Claims.Set("address", address)
	return nil
}

func applyRoleName(m Model, _ Input, out *Result) error {
	source := m.config(ConfigRole)
	if !out.Roles.Has(source) {
		return nil
	}
	out.Roles.Remove(source)
	out.Roles.Add(m.config(ConfigNewRoleName))
	return nil
}

func applyHardcodedRole(m Model, _ Input, out *Result) error {
	out.Roles.Add(m.config(ConfigRole))
	return nil
}

// convert turns a configured string into the claim's JSON type.
func convert(raw, jsonType string) (any, error) {
	switch strings.ToLower(jsonType) {
	case "", "string":
		return raw, nil
	case "long", "int":
		return strconv.ParseInt(raw, 10, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	case "json":
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, errors.Errorf("unsupported json type %q", jsonType)
}
