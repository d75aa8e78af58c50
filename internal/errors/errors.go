package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinel errors shared by the repositories
var (
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Kind classifies a per-request failure.
type Kind string

const (
	KindClient        Kind = "ClientError"   // disabled, bearer-only, missing, bad credentials
	KindGrant         Kind = "GrantError"    // invalid_code, invalid_grant, invalid_user_credentials
	KindPolicy        Kind = "PolicyError"   // ssl_required, realm_disabled, action_required
	KindConfig        Kind = "ConfigError"   // malformed configuration, fatal at startup
	KindModelConflict Kind = "ModelConflict" // duplicate username/email in a user directory
)

// OAuth2 error codes written in the "error" field of a token endpoint response
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeAccessDenied         = "access_denied"
	CodeServerError          = "server_error"
	CodeInvalidToken         = "invalid_token"
)

// Audit event error values
const (
	EventRealmNotFound            = "realm_not_found"
	EventInvalidRequest           = "invalid_request"
	EventClientNotFound           = "client_not_found"
	EventClientDisabled           = "client_disabled"
	EventInvalidClient            = "invalid_client"
	EventInvalidClientCredentials = "invalid_client_credentials"
	EventInvalidCode              = "invalid_code"
	EventInvalidToken             = "invalid_token"
	EventInvalidUserCredentials   = "invalid_user_credentials"
	EventInvalidUser              = "invalid_user"
	EventUserNotFound             = "user_not_found"
	EventUserDisabled             = "user_disabled"
	EventResolveRequiredActions   = "resolve_required_actions"
	EventSSLRequired              = "ssl_required"
	EventRealmDisabled            = "realm_disabled"
	EventNotAllowed               = "not_allowed"
	EventSessionExpired           = "session_expired"
	EventRejectedByUser           = "rejected_by_user"
	EventInvalidRedirectURI       = "invalid_redirect_uri"
)

// Error is a classified failure carrying the fixed status/error-code pair the token
// endpoint answers with and the error recorded on the audit event.
type Error struct {
	Kind        Kind
	Code        string
	Description string
	Status      int
	EventError  string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// ClientError builds a KindClient error.
func ClientError(code, description string, status int, eventError string) *Error {
	return &Error{Kind: KindClient, Code: code, Description: description, Status: status, EventError: eventError}
}

// GrantError builds a KindGrant error.
func GrantError(code, description string, status int, eventError string) *Error {
	return &Error{Kind: KindGrant, Code: code, Description: description, Status: status, EventError: eventError}
}

// PolicyError builds a KindPolicy error.
func PolicyError(code, description string, status int, eventError string) *Error {
	return &Error{Kind: KindPolicy, Code: code, Description: description, Status: status, EventError: eventError}
}

// ConfigError builds a KindConfig error. These are raised while loading configuration and are never
// returned from a token request.
func ConfigError(description string, args ...any) *Error {
	return &Error{
		Kind:        KindConfig,
		Code:        CodeServerError,
		Description: fmt.Sprintf(description, args...),
		Status:      http.StatusInternalServerError,
	}
}

// ModelConflict builds a KindModelConflict error, surfaced to token callers as invalid_user.
func ModelConflict(description string) *Error {
	return &Error{
		Kind:        KindModelConflict,
		Code:        CodeInvalidGrant,
		Description: description,
		Status:      http.StatusUnauthorized,
		EventError:  EventInvalidUser,
	}
}

// ServerError wraps an unexpected failure.
func ServerError(cause error) *Error {
	return &Error{
		Kind:        KindGrant,
		Code:        CodeServerError,
		Description: "unexpected server error",
		Status:      http.StatusInternalServerError,
		cause:       cause,
	}
}

// AsError finds the first *Error in err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
