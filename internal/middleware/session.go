package middleware

import (
	"net/http"
	"strings"

	"github.com/hongminglow/wallet-auth/internal/auth"
	"github.com/hongminglow/wallet-auth/internal/http/respond"
	"github.com/hongminglow/wallet-auth/internal/models"
)

// SessionParser verifies a raw session token.
type SessionParser interface {
	Parse(token string) (models.Session, error)
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if raw := r.Header.Get("Authorization"); strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	}
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireSession rejects requests without a valid session and stores the
// session in the request context otherwise.
func RequireSession(parser SessionParser, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			respond.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		session, err := parser.Parse(token)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}
