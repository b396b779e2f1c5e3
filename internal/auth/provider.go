package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hongminglow/wallet-auth/internal/metrics"
	"github.com/hongminglow/wallet-auth/internal/models"
	"github.com/hongminglow/wallet-auth/internal/storage"
)

// ErrMissingCredential means the claim carried no wallet address. No session
// may be issued.
var ErrMissingCredential = errors.New("no wallet address provided")

// ErrVerificationFailed wraps a rejection from the configured CredentialVerifier.
var ErrVerificationFailed = errors.New("credential verification failed")

// CredentialVerifier decides whether a wallet claim is trusted before any
// user row is touched.
type CredentialVerifier interface {
	Verify(ctx context.Context, creds models.Credentials) error
}

// VerifierFunc adapts a function to CredentialVerifier.
type VerifierFunc func(ctx context.Context, creds models.Credentials) error

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, creds models.Credentials) error {
	return f(ctx, creds)
}

// TrustUpstream accepts every claim. Proof of wallet ownership is left to the
// client that produced the credentials.
type TrustUpstream struct{}

// Verify always succeeds.
func (TrustUpstream) Verify(context.Context, models.Credentials) error {
	return nil
}

// Provider turns wallet claims into session identities backed by the user store.
type Provider struct {
	store    storage.UserStore
	verifier CredentialVerifier
	logger   *slog.Logger
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithVerifier replaces the default TrustUpstream verifier.
func WithVerifier(v CredentialVerifier) ProviderOption {
	return func(p *Provider) {
		if v != nil {
			p.verifier = v
		}
	}
}

// NewProvider constructs a provider over store.
func NewProvider(store storage.UserStore, logger *slog.Logger, opts ...ProviderOption) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Provider{store: store, verifier: TrustUpstream{}, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize records the login for creds and returns the identity to place in
// the session.
func (p *Provider) Authorize(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	if strings.TrimSpace(creds.WalletAddress) == "" {
		p.logger.InfoContext(ctx, "no wallet address provided")
		metrics.LoginsTotal.WithLabelValues(metrics.LoginMissing).Inc()
		return models.Identity{}, ErrMissingCredential
	}

	if err := p.verifier.Verify(ctx, creds); err != nil {
		p.logger.WarnContext(ctx, "wallet credential rejected",
			slog.String("wallet_address", creds.WalletAddress), slog.Any("error", err))
		metrics.LoginsTotal.WithLabelValues(metrics.LoginRejected).Inc()
		return models.Identity{}, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	user, err := p.store.UpsertUser(ctx, creds.WalletAddress, storage.UserUpdate{
		Username:          storage.Optional(creds.Username),
		ProfilePictureURL: storage.Optional(creds.ProfilePictureURL),
	})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		return models.Identity{}, fmt.Errorf("store user: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(metrics.LoginSucceeded).Inc()
	return IdentityFromUser(user, creds.WalletAddress), nil
}

// IdentityFromUser builds the session identity for a stored user, applying
// display defaults.
func IdentityFromUser(user models.User, walletAddress string) models.Identity {
	username := user.Username
	if username == "" {
		username = models.DefaultUsername
	}
	return models.Identity{
		ID:                strconv.FormatInt(user.ID, 10),
		WalletAddress:     walletAddress,
		Username:          username,
		ProfilePictureURL: user.ProfilePictureURL,
		LastLoginAt:       user.LastLoginAt,
	}
}
