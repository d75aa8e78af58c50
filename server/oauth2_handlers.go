package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// WellKnownOpenIDConfig serves the realm's OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realm, err := s.auth.Realm(r.PathValue("realm"))
		if err != nil {
			writeError(w, err)
			return
		}
		issuer := s.auth.Issuer(realm)
		oidcBase := issuer + "/protocol/openid-connect"

		resp := map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": oidcBase + "/auth",
			"token_endpoint":         oidcBase + "/token",
			"jwks_uri":               oidcBase + "/certs",

			"response_types_supported":              []string{"code"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{string(realm.SignerType)},
			"scopes_supported":                      []string{oauth2.ScopeOpenID},

			"grant_types_supported": []string{
				string(oauth2.AuthorizationCodeGrant),
				string(oauth2.PasswordGrant),
				string(oauth2.RefreshTokenGrant),
			},
			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic", // Authorization: Basic header
				"client_secret_post",  // Credentials in POST body
			},
			"claims_supported": []string{
				"sub", "iss", "aud", "exp", "iat", "auth_time", "nonce",
				"azp", "session_state", "name", "address",
			},
			"claims_parameter_supported":      false,
			"request_parameter_supported":     false,
			"request_uri_parameter_supported": false,
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate the realm's tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.auth.GetJWKS(r.PathValue("realm"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, jwks)
	}
}

// Token exchanges a code, user credentials or a refresh token for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realmID := r.PathValue("realm")
		req, err := oauth2.ParseTokenRequest(r, realmID, s.proxies)
		if err != nil {
			appErr := writeError(w, s.auth.RejectMalformed(r.Context(), realmID, s.proxies.ClientAddress(r), err))
			observeToken(realmID, "", appErr.Code)
			return
		}

		resp, err := s.auth.Token(r.Context(), req)
		if err != nil {
			appErr := writeError(w, err)
			observeToken(realmID, string(req.GrantType), appErr.Code)
			return
		}

		observeToken(realmID, string(req.GrantType), "success")
		writeJSON(w, http.StatusOK, resp)
	}
}

// Health reports liveness
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}

// writeError maps err onto the OAuth error body and status. Unclassified errors become
// a 500 server_error and are logged.
func writeError(w http.ResponseWriter, err error) *apperrors.Error {
	appErr, ok := apperrors.AsError(err)
	if !ok {
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			appErr = &apperrors.Error{Code: apperrors.CodeInvalidRequest, Description: "Not found", Status: http.StatusNotFound}
		default:
			log.Err(err).Msg("request failed")
			appErr = apperrors.ServerError(err)
		}
	}
	writeJSONError(w, appErr.Code, appErr.Description, appErr.Status)
	return appErr
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
