package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyToken stores the verified access token
	ContextKeyToken ContextKey = "access_token"
)

// RequireAuth is middleware that validates a Bearer access token issued by the path's realm.
// The verified token is stored in the request context.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeBearerChallenge(w, "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeBearerChallenge(w, "Invalid Authorization header format")
			return
		}

		parsed, err := s.auth.VerifyAccessToken(r.PathValue("realm"), parts[1])
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindGrant) {
				writeBearerChallenge(w, "Invalid token")
				return
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyToken, parsed)
		next(w, r.WithContext(ctx))
	}
}

// accessToken returns the token stored by RequireAuth
func accessToken(r *http.Request) (*token.Parsed, bool) {
	parsed, ok := r.Context().Value(ContextKeyToken).(*token.Parsed)
	return parsed, ok
}

func writeBearerChallenge(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	writeJSONError(w, apperrors.CodeInvalidToken, description, http.StatusUnauthorized)
}
