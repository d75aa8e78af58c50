package auth

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

// Token endpoint rejections. Each carries the status, OAuth2 error code and audit event error
// of one terminal state.
var (
	RealmNotFoundErr     = apperrors.PolicyError(apperrors.CodeInvalidRequest, "Realm does not exist", http.StatusNotFound, apperrors.EventRealmNotFound)
	SSLRequiredErr       = apperrors.PolicyError(apperrors.CodeInvalidRequest, "HTTPS required", http.StatusForbidden, apperrors.EventSSLRequired)
	RealmDisabledErr     = apperrors.PolicyError(apperrors.CodeAccessDenied, "Realm not enabled", http.StatusForbidden, apperrors.EventRealmDisabled)
	MalformedRequestErr  = apperrors.ClientError(apperrors.CodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest, apperrors.EventInvalidRequest)
	UnsupportedGrantErr  = apperrors.ClientError(apperrors.CodeUnsupportedGrantType, "Unsupported grant_type", http.StatusBadRequest, apperrors.EventInvalidRequest)
	ClientNotFoundErr    = apperrors.ClientError(apperrors.CodeInvalidClient, "Client not found", http.StatusUnauthorized, apperrors.EventClientNotFound)
	ClientDisabledErr    = apperrors.ClientError(apperrors.CodeUnauthorizedClient, "Client disabled", http.StatusBadRequest, apperrors.EventClientDisabled)
	BearerOnlyErr        = apperrors.ClientError(apperrors.CodeUnauthorizedClient, "Bearer-only not allowed", http.StatusBadRequest, apperrors.EventInvalidClient)
	ClientCredentialsErr = apperrors.ClientError(apperrors.CodeUnauthorizedClient, "Invalid client credentials", http.StatusBadRequest, apperrors.EventInvalidClientCredentials)
	DirectGrantErr       = apperrors.ClientError(apperrors.CodeUnauthorizedClient, "Client not allowed for direct access grants", http.StatusBadRequest, apperrors.EventNotAllowed)
	InvalidRedirectErr   = apperrors.ClientError(apperrors.CodeInvalidRequest, "Invalid redirect_uri", http.StatusBadRequest, apperrors.EventInvalidRedirectURI)
	CodeNotValidErr      = apperrors.GrantError(apperrors.CodeInvalidGrant, "Code not valid", http.StatusBadRequest, apperrors.EventInvalidCode)
	CodeExpiredErr       = apperrors.GrantError(apperrors.CodeInvalidGrant, "Code is expired", http.StatusBadRequest, apperrors.EventInvalidCode)
	IncorrectRedirectErr = apperrors.GrantError(apperrors.CodeInvalidGrant, "Incorrect redirect_uri", http.StatusBadRequest, apperrors.EventInvalidCode)
	SessionNotActiveErr  = apperrors.GrantError(apperrors.CodeInvalidGrant, "Session not active", http.StatusBadRequest, apperrors.EventSessionExpired)
	UserNotFoundErr      = apperrors.GrantError(apperrors.CodeInvalidGrant, "User not found", http.StatusBadRequest, apperrors.EventUserNotFound)
	UserCredentialsErr   = apperrors.GrantError(apperrors.CodeInvalidGrant, "Invalid user credentials", http.StatusUnauthorized, apperrors.EventInvalidUserCredentials)
	UserConflictErr      = apperrors.ModelConflict("Invalid user credentials")
	UserDisabledErr      = apperrors.GrantError(apperrors.CodeInvalidGrant, "Account disabled", http.StatusBadRequest, apperrors.EventUserDisabled)
	ActionRequiredErr    = apperrors.GrantError(apperrors.CodeInvalidGrant, "Account is not fully set up", http.StatusBadRequest, apperrors.EventResolveRequiredActions)
	InvalidRefreshErr    = apperrors.GrantError(apperrors.CodeInvalidGrant, "Invalid refresh token", http.StatusBadRequest, apperrors.EventInvalidToken)
	RefreshClientErr     = apperrors.GrantError(apperrors.CodeInvalidGrant, "Unmatching clients", http.StatusBadRequest, apperrors.EventInvalidToken)
	StaleRefreshErr      = apperrors.GrantError(apperrors.CodeInvalidGrant, "Stale token", http.StatusBadRequest, apperrors.EventInvalidToken)
	ConsentDeniedErr     = apperrors.PolicyError(apperrors.CodeAccessDenied, "User denied consent", http.StatusForbidden, apperrors.EventRejectedByUser)
	BearerTokenErr       = apperrors.GrantError(apperrors.CodeInvalidToken, "Invalid bearer token", http.StatusUnauthorized, apperrors.EventInvalidToken)
)
