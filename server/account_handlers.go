package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

// GrantedApplications lists the clients the token's user has consented to
func (s *Server) GrantedApplications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parsed, ok := accessToken(r)
		if !ok {
			writeJSONError(w, apperrors.CodeInvalidToken, "Missing token", http.StatusUnauthorized)
			return
		}
		apps, err := s.auth.GrantedApplications(r.Context(), r.PathValue("realm"), parsed.Subject)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apps)
	}
}

// RevokeGrant removes the token user's consent for a client and ends the client's sessions
func (s *Server) RevokeGrant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parsed, ok := accessToken(r)
		if !ok {
			writeJSONError(w, apperrors.CodeInvalidToken, "Missing token", http.StatusUnauthorized)
			return
		}
		if err := s.auth.RevokeGrant(r.Context(), r.PathValue("realm"), parsed.Subject, r.PathValue("client")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
