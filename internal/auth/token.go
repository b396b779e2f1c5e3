package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/wallet-auth/internal/models"
)

// ErrInvalidSession is returned for tokens that fail signature, issuer or expiry checks.
var ErrInvalidSession = errors.New("invalid session token")

type sessionClaims struct {
	WalletAddress     string    `json:"wallet_address"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	LastLoginAt       time.Time `json:"last_login_at"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed session JWTs.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (t *TokenManager) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token carrying every identity field and returns it with its expiry.
func (t *TokenManager) Issue(identity models.Identity) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := sessionClaims{
		WalletAddress:     identity.WalletAddress,
		Username:          identity.Username,
		ProfilePictureURL: identity.ProfilePictureURL,
		LastLoginAt:       identity.LastLoginAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies tokenString and rebuilds the session it encodes.
func (t *TokenManager) Parse(tokenString string) (models.Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.WalletAddress == "" {
		return models.Session{}, fmt.Errorf("%w: missing sub or wallet_address claims", ErrInvalidSession)
	}

	identity := models.Identity{
		ID:                claims.Subject,
		WalletAddress:     claims.WalletAddress,
		Username:          claims.Username,
		ProfilePictureURL: claims.ProfilePictureURL,
		LastLoginAt:       claims.LastLoginAt,
	}
	return models.NewSession(identity, claims.ExpiresAt.Time), nil
}
