package mappers

import (
	"strings"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

var required = map[Type][]string{
	TypeHardcodedClaim: {ConfigClaimName},
	TypeUserAttribute:  {ConfigUserAttribute, ConfigClaimName},
	TypeUserProperty:   {ConfigUserProperty, ConfigClaimName},
	TypeFullName:       nil,
	TypeAddress:        nil,
	TypeRoleName:       {ConfigRole, ConfigNewRoleName},
	TypeHardcodedRole:  {ConfigRole},
}

// Validate checks a mapper's configuration. Malformed mappers are a ConfigError and must
// stop the server at startup rather than fail individual token requests.
func Validate(m Model) error {
	if m.Name == "" {
		return apperrors.ConfigError("mapper of type %q has no name", m.Type)
	}
	keys, ok := required[m.Type]
	if !ok {
		return apperrors.ConfigError("mapper %q: unknown type %q", m.Name, m.Type)
	}
	for _, k := range keys {
		if m.config(k) == "" {
			return apperrors.ConfigError("mapper %q: missing config %q", m.Name, k)
		}
	}
	if len(SplitPath(m.config(ConfigClaimName))) == 0 && m.config(ConfigClaimName) != "" {
		return apperrors.ConfigError("mapper %q: empty claim path %q", m.Name, m.config(ConfigClaimName))
	}
	switch m.Type {
	case TypeHardcodedClaim:
		if _, err := convert(m.config(ConfigClaimValue), m.config(ConfigJSONType)); err != nil {
			return apperrors.ConfigError("mapper %q: value does not match %q: %v", m.Name, m.config(ConfigJSONType), err)
		}
	case TypeUserAttribute:
		if !isKnownJSONType(m.config(ConfigJSONType)) {
			return apperrors.ConfigError("mapper %q: unsupported json type %q", m.Name, m.config(ConfigJSONType))
		}
	case TypeUserProperty:
		if _, ok := userProperty(Subject{}, m.config(ConfigUserProperty)); !ok {
			return apperrors.ConfigError("mapper %q: unknown user property %q", m.Name, m.config(ConfigUserProperty))
		}
	}
	return nil
}

// ValidateAll validates every mapper and returns the first error.
func ValidateAll(models []Model) error {
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if err := Validate(m); err != nil {
			return err
		}
		if _, dup := seen[m.Name]; dup {
			return apperrors.ConfigError("duplicate mapper name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

func isKnownJSONType(t string) bool {
	switch strings.ToLower(t) {
	case "", "string", "long", "int", "boolean", "json":
		return true
	}
	return false
}
