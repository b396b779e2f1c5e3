package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hongminglow/wallet-auth/internal/metrics"
	"github.com/hongminglow/wallet-auth/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// undefinedTable is the SQLSTATE Postgres reports for a missing relation.
const undefinedTable = "42P01"

// schemaLockKey serializes concurrent bootstraps across processes.
const schemaLockKey int64 = 0x7573657273

const tableExistsQuery = `
	SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_name = 'users'
	)`

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL NOT NULL,
		wallet_address VARCHAR(42) NOT NULL,
		username VARCHAR(255),
		profile_picture_url TEXT,
		last_login_at TIMESTAMPTZ(3) NOT NULL,
		created_at TIMESTAMPTZ(3) NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ(3) NOT NULL,
		CONSTRAINT users_pkey PRIMARY KEY (id)
	)`

const createWalletIndex = `CREATE UNIQUE INDEX IF NOT EXISTS users_wallet_address_key ON users (wallet_address)`

// InitializeDatabase creates the users table and its wallet index when absent.
// Repeated and concurrent calls are safe.
func (s *Store) InitializeDatabase(ctx context.Context) error {
	metrics.SchemaBootstrapsTotal.WithLabelValues(metrics.TriggerExplicit).Inc()
	return s.bootstrap(ctx)
}

func (s *Store) bootstrap(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database connection test: %w", err)
	}
	s.logger.DebugContext(ctx, "database connection test successful")

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	if err := s.ensureSchema(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.ErrorContext(ctx, "rollback schema transaction", slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "database initialization completed")
	return nil
}

func (s *Store) ensureSchema(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, tableExistsQuery).Scan(&exists); err != nil {
		return fmt.Errorf("check users table: %w", err)
	}
	if exists {
		s.logger.DebugContext(ctx, "users table already exists")
		return nil
	}

	s.logger.InfoContext(ctx, "creating users table")
	if _, err := tx.Exec(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	if _, err := tx.Exec(ctx, createWalletIndex); err != nil {
		return fmt.Errorf("create wallet address index: %w", err)
	}
	s.logger.InfoContext(ctx, "users table created successfully")
	return nil
}

// classify maps driver errors onto the storage package's error kinds.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %w", storage.ErrSchemaMissing, err)
	}
	return err
}
