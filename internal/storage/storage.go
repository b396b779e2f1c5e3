package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/wallet-auth/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrSchemaMissing indicates the users table has not been created yet.
var ErrSchemaMissing = errors.New("users schema missing")

// DefaultActiveDays is the window used when a caller asks for recently active
// users without naming one.
const DefaultActiveDays = 7

// UserUpdate carries the optional profile fields of a login. A nil field is
// left untouched on update and defaulted on create.
type UserUpdate struct {
	Username          *string
	ProfilePictureURL *string
}

// UserStore captures persistence operations needed by the auth flow and handlers.
type UserStore interface {
	UpsertUser(ctx context.Context, walletAddress string, update UserUpdate) (models.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUsersByLastLogin(ctx context.Context, since time.Time) ([]models.User, error)
	GetRecentlyActiveUsers(ctx context.Context, days int) ([]models.User, error)
}

// Optional returns a pointer to value, or nil when value is empty.
func Optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
