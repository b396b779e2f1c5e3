package auth

import (
	"context"

	"github.com/hongminglow/wallet-auth/internal/models"
)

// SessionCookie is the cookie that carries the session token.
const SessionCookie = "session-token"

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	session, ok := ctx.Value(sessionKey).(models.Session)
	return session, ok
}
