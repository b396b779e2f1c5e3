package models

import "time"

// Credentials is the identity claim forwarded by the wallet client.
// Nothing in it is verified by default.
type Credentials struct {
	WalletAddress     string
	Username          string
	ProfilePictureURL string
}

// Identity is the record produced by a successful authorization. It is copied
// verbatim into the session token.
type Identity struct {
	ID                string    `json:"id"`
	WalletAddress     string    `json:"walletAddress"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	LastLoginAt       time.Time `json:"lastLoginAt"`
}

// SessionUser is the user view exposed to the rest of the application.
// Name and Image mirror Username and ProfilePictureURL.
type SessionUser struct {
	Identity
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Session is what callers see after a successful login.
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// NewSession wraps an identity into a session expiring at expires.
func NewSession(identity Identity, expires time.Time) Session {
	return Session{
		User: SessionUser{
			Identity: identity,
			Name:     identity.Username,
			Image:    identity.ProfilePictureURL,
		},
		Expires: expires,
	}
}
