package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hongminglow/wallet-auth/internal/metrics"
	"github.com/hongminglow/wallet-auth/internal/models"
	"github.com/hongminglow/wallet-auth/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

// DB is the subset of *pgxpool.Pool the store relies on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store provides Postgres-backed persistence for wallet users.
type Store struct {
	db           DB
	logger       *slog.Logger
	now          func() time.Time
	traceQueries bool
	closeOnce    sync.Once
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema and failure messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the source of login timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithQueryTracing logs every statement at debug level. Only honoured by NewUserStore.
func WithQueryTracing(enabled bool) Option {
	return func(s *Store) {
		s.traceQueries = enabled
	}
}

// New wraps an existing connection handle.
func New(db DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewUserStore creates a pool for databaseURL. No connection is made until the
// first query; the schema is created on demand.
func NewUserStore(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	s := New(nil, opts...)
	if s.traceQueries {
		cfg.ConnConfig.Tracer = newQueryTracer(s.logger)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s.db = pool

	return s, nil
}

// Close releases database resources. It is safe to call on a nil store, on a
// store that never ran a query, and more than once.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.db.Close()
		}
	})
}

const userColumns = `id, wallet_address, COALESCE(username, 'Anonymous'), COALESCE(profile_picture_url, ''), last_login_at, created_at, updated_at`

const upsertUserQuery = `
	INSERT INTO users (wallet_address, username, profile_picture_url, last_login_at, created_at, updated_at)
	VALUES ($1, COALESCE($2::text, 'Anonymous'), COALESCE($3::text, ''), $4::timestamptz, $4::timestamptz, $4::timestamptz)
	ON CONFLICT (wallet_address) DO UPDATE SET
		username = COALESCE($2::text, users.username),
		profile_picture_url = COALESCE($3::text, users.profile_picture_url),
		last_login_at = $4::timestamptz,
		updated_at = $4::timestamptz
	RETURNING ` + userColumns + `, (xmax = 0) AS inserted`

// UpsertUser records a login for walletAddress, creating the row on first
// sight. A missing users table is created and the statement retried once.
func (s *Store) UpsertUser(ctx context.Context, walletAddress string, update storage.UserUpdate) (models.User, error) {
	user, err := s.upsert(ctx, walletAddress, update)
	if errors.Is(err, storage.ErrSchemaMissing) {
		s.logger.WarnContext(ctx, "users table does not exist, creating it", slog.String("wallet_address", walletAddress))
		metrics.SchemaBootstrapsTotal.WithLabelValues(metrics.TriggerLazy).Inc()
		if err := s.bootstrap(ctx); err != nil {
			return models.User{}, fmt.Errorf("bootstrap users schema: %w", err)
		}
		user, err = s.upsert(ctx, walletAddress, update)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (s *Store) upsert(ctx context.Context, walletAddress string, update storage.UserUpdate) (models.User, error) {
	start := time.Now()
	now := s.now().UTC()

	row := s.db.QueryRow(ctx, upsertUserQuery, walletAddress, optionalArg(update.Username), optionalArg(update.ProfilePictureURL), now)

	var user models.User
	var inserted bool
	err := row.Scan(&user.ID, &user.WalletAddress, &user.Username, &user.ProfilePictureURL,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt, &inserted)
	observe("upsert_user", start, err)
	if err != nil {
		return models.User{}, classify(err)
	}

	if inserted {
		metrics.UserUpsertsTotal.WithLabelValues(metrics.BranchCreated).Inc()
	} else {
		metrics.UserUpsertsTotal.WithLabelValues(metrics.BranchUpdated).Inc()
	}
	return user, nil
}

// GetUserByWallet fetches a user by wallet address.
func (s *Store) GetUserByWallet(ctx context.Context, walletAddress string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`
	start := time.Now()
	user, err := scanUser(s.db.QueryRow(ctx, query, walletAddress))
	observe("get_user_by_wallet", start, ignoreNotFound(err))
	return user, err
}

// GetUserByID fetches a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	start := time.Now()
	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	observe("get_user_by_id", start, ignoreNotFound(err))
	return user, err
}

// GetUsersByLastLogin lists users whose last login is at or after since, newest first.
func (s *Store) GetUsersByLastLogin(ctx context.Context, since time.Time) ([]models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE last_login_at >= $1 ORDER BY last_login_at DESC`
	start := time.Now()
	users, err := s.listUsers(ctx, query, since.UTC())
	observe("get_users_by_last_login", start, err)
	return users, err
}

// GetRecentlyActiveUsers lists users that logged in within the last days days.
func (s *Store) GetRecentlyActiveUsers(ctx context.Context, days int) ([]models.User, error) {
	since := s.now().AddDate(0, 0, -days)
	return s.GetUsersByLastLogin(ctx, since)
}

func (s *Store) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	return users, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.WalletAddress, &user.Username, &user.ProfilePictureURL,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, classify(err)
	}
	return user, nil
}

func optionalArg(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func observe(operation string, start time.Time, err error) {
	metrics.DBQueryDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBQueryErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
