package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hongminglow/wallet-auth/internal/auth"
	"github.com/hongminglow/wallet-auth/internal/models"
	"github.com/hongminglow/wallet-auth/internal/storage"
)

type fakeStore struct {
	upsertFunc         func(ctx context.Context, walletAddress string, update storage.UserUpdate) (models.User, error)
	byWalletFunc       func(ctx context.Context, walletAddress string) (models.User, error)
	byIDFunc           func(ctx context.Context, id int64) (models.User, error)
	byLastLoginFunc    func(ctx context.Context, since time.Time) ([]models.User, error)
	recentlyActiveFunc func(ctx context.Context, days int) ([]models.User, error)
	upserts            int
}

func (f *fakeStore) UpsertUser(ctx context.Context, walletAddress string, update storage.UserUpdate) (models.User, error) {
	f.upserts++
	if f.upsertFunc != nil {
		return f.upsertFunc(ctx, walletAddress, update)
	}
	return models.User{}, errors.New("upsert not configured")
}

func (f *fakeStore) GetUserByWallet(ctx context.Context, walletAddress string) (models.User, error) {
	if f.byWalletFunc != nil {
		return f.byWalletFunc(ctx, walletAddress)
	}
	return models.User{}, storage.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	if f.byIDFunc != nil {
		return f.byIDFunc(ctx, id)
	}
	return models.User{}, storage.ErrNotFound
}

func (f *fakeStore) GetUsersByLastLogin(ctx context.Context, since time.Time) ([]models.User, error) {
	if f.byLastLoginFunc != nil {
		return f.byLastLoginFunc(ctx, since)
	}
	return []models.User{}, nil
}

func (f *fakeStore) GetRecentlyActiveUsers(ctx context.Context, days int) ([]models.User, error) {
	if f.recentlyActiveFunc != nil {
		return f.recentlyActiveFunc(ctx, days)
	}
	return []models.User{}, nil
}

const (
	testSecret = "test-secret"
	testIssuer = "wallet-auth-test"
	testWallet = "0x1111111111111111111111111111111111111111"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens() *auth.TokenManager {
	return auth.NewTokenManager(testSecret, testIssuer, time.Hour)
}

// newTestMux registers every handler over store.
func newTestMux(store storage.UserStore) (*http.ServeMux, *auth.TokenManager) {
	tokens := newTestTokens()
	mux := http.NewServeMux()
	NewAuthHandler(auth.NewProvider(store, discardLogger()), tokens, discardLogger(), false).Register(mux)
	NewUsersHandler(store, tokens, discardLogger()).Register(mux)
	return mux, tokens
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func bearerFor(t *testing.T, tokens *auth.TokenManager, id string) string {
	t.Helper()
	token, _, err := tokens.Issue(models.Identity{ID: id, WalletAddress: testWallet, Username: "alice"})
	require.NoError(t, err)
	return "Bearer " + token
}
