package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/wallet-auth/internal/storage"
)

var (
	fixedNow          = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	userColumnNames   = []string{"id", "wallet_address", "username", "profile_picture_url", "last_login_at", "created_at", "updated_at"}
	upsertColumnNames = append(append([]string{}, userColumnNames...), "inserted")
)

const (
	upsertPattern      = `INSERT INTO users \(wallet_address, username, profile_picture_url, last_login_at, created_at, updated_at\)`
	lockPattern        = `SELECT pg_advisory_xact_lock\(\$1\)`
	existsPattern      = `SELECT EXISTS`
	createTablePattern = `CREATE TABLE IF NOT EXISTS users`
	createIndexPattern = `CREATE UNIQUE INDEX IF NOT EXISTS users_wallet_address_key`
)

func newStoreWithMock(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := New(mock, WithClock(func() time.Time { return fixedNow }))
	return store, mock
}

func missingTableErr() error {
	return &pgconn.PgError{Code: undefinedTable, Message: `relation "users" does not exist`}
}

// anyUpsertArgs matches the four upsert parameters without pinning them.
func anyUpsertArgs() []any {
	return []any{pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()}
}

func expectBootstrap(mock pgxmock.PgxPoolIface, exists bool) {
	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec(lockPattern).WithArgs(schemaLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(existsPattern).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
	if !exists {
		mock.ExpectExec(createTablePattern).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
		mock.ExpectExec(createIndexPattern).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	}
	mock.ExpectCommit()
}

func TestUpsertUser_CreatesWithDefaults(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(upsertPattern).
		WithArgs("0xABC", "alice", nil, fixedNow).
		WillReturnRows(pgxmock.NewRows(upsertColumnNames).
			AddRow(int64(1), "0xABC", "alice", "", fixedNow, fixedNow, fixedNow, true))

	user, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{Username: storage.Optional("alice")})
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "0xABC", user.WalletAddress)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "", user.ProfilePictureURL)
	assert.Equal(t, fixedNow, user.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_UpdatePassesOnlyProvidedFields(t *testing.T) {
	store, mock := newStoreWithMock(t)
	later := fixedNow.Add(time.Minute)
	store.now = func() time.Time { return later }

	mock.ExpectQuery(upsertPattern).
		WithArgs("0xABC", nil, "http://x/p.png", later).
		WillReturnRows(pgxmock.NewRows(upsertColumnNames).
			AddRow(int64(1), "0xABC", "alice", "http://x/p.png", later, fixedNow, later, false))

	user, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{ProfilePictureURL: storage.Optional("http://x/p.png")})
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "http://x/p.png", user.ProfilePictureURL)
	assert.True(t, user.LastLoginAt.After(fixedNow))
	assert.Equal(t, fixedNow, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_UsesSingleConflictStatement(t *testing.T) {
	assert.Contains(t, upsertUserQuery, "ON CONFLICT (wallet_address) DO UPDATE")
	assert.Contains(t, upsertUserQuery, "COALESCE($2::text, users.username)")
	assert.Contains(t, upsertUserQuery, "COALESCE($3::text, users.profile_picture_url)")
}

func TestUpsertUser_RecreatesMissingTable(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(upsertPattern).WithArgs(anyUpsertArgs()...).WillReturnError(missingTableErr())
	expectBootstrap(mock, false)
	mock.ExpectQuery(upsertPattern).
		WithArgs("0xABC", nil, nil, fixedNow).
		WillReturnRows(pgxmock.NewRows(upsertColumnNames).
			AddRow(int64(1), "0xABC", "Anonymous", "", fixedNow, fixedNow, fixedNow, true))

	user, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "Anonymous", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_RetriesOnlyOnce(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(upsertPattern).WithArgs(anyUpsertArgs()...).WillReturnError(missingTableErr())
	expectBootstrap(mock, false)
	mock.ExpectQuery(upsertPattern).WithArgs(anyUpsertArgs()...).WillReturnError(missingTableErr())

	_, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrSchemaMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_OtherErrorsPropagateWithoutBootstrap(t *testing.T) {
	store, mock := newStoreWithMock(t)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(upsertPattern).WithArgs(anyUpsertArgs()...).WillReturnError(dbErr)

	_, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, storage.ErrSchemaMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_BootstrapFailurePropagates(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(upsertPattern).WithArgs(anyUpsertArgs()...).WillReturnError(missingTableErr())
	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec(lockPattern).WithArgs(schemaLockKey).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err := store.UpsertUser(context.Background(), "0xABC", storage.UserUpdate{})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`bootstrap users schema: acquire schema lock: .*permission denied`), err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByWallet_Found(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM users WHERE wallet_address = \$1`).
		WithArgs("0xABC").
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow(int64(3), "0xABC", "bob", "http://x/b.png", fixedNow, fixedNow, fixedNow))

	user, err := store.GetUserByWallet(context.Background(), "0xABC")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "bob", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByWallet_NotFound(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM users WHERE wallet_address = \$1`).
		WithArgs("0xGHOST").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetUserByWallet(context.Background(), "0xGHOST")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow(int64(9), "0x999", "Anonymous", "", fixedNow, fixedNow, fixedNow))
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(10)).
		WillReturnError(pgx.ErrNoRows)

	user, err := store.GetUserByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "0x999", user.WalletAddress)

	_, err = store.GetUserByID(context.Background(), 10)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsersByLastLogin(t *testing.T) {
	store, mock := newStoreWithMock(t)
	since := fixedNow.Add(-time.Hour)

	mock.ExpectQuery(`WHERE last_login_at >= \$1 ORDER BY last_login_at DESC`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow(int64(2), "0x2", "b", "", fixedNow, fixedNow, fixedNow).
			AddRow(int64(1), "0x1", "a", "", since, since, since))

	users, err := store.GetUsersByLastLogin(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[0].ID)
	assert.Equal(t, int64(1), users[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsersByLastLogin_FutureSinceIsEmpty(t *testing.T) {
	store, mock := newStoreWithMock(t)
	future := fixedNow.Add(24 * time.Hour)

	mock.ExpectQuery(`WHERE last_login_at >= \$1`).
		WithArgs(future).
		WillReturnRows(pgxmock.NewRows(userColumnNames))

	users, err := store.GetUsersByLastLogin(context.Background(), future)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentlyActiveUsers_ComputesWindow(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`WHERE last_login_at >= \$1`).
		WithArgs(fixedNow.AddDate(0, 0, -storage.DefaultActiveDays)).
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow(int64(1), "0x1", "a", "", fixedNow, fixedNow, fixedNow))

	users, err := store.GetRecentlyActiveUsers(context.Background(), storage.DefaultActiveDays)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsersByLastLogin_QueryError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`WHERE last_login_at >= \$1`).WithArgs(pgxmock.AnyArg()).WillReturnError(errors.New("db down"))

	_, err := store.GetUsersByLastLogin(context.Background(), fixedNow)
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`list users: .*db down`), err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializeDatabase_CreatesWhenAbsent(t *testing.T) {
	store, mock := newStoreWithMock(t)
	expectBootstrap(mock, false)

	require.NoError(t, store.InitializeDatabase(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializeDatabase_NoopWhenPresent(t *testing.T) {
	store, mock := newStoreWithMock(t)
	expectBootstrap(mock, true)

	require.NoError(t, store.InitializeDatabase(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializeDatabase_PingFailure(t *testing.T) {
	store, mock := newStoreWithMock(t)
	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	err := store.InitializeDatabase(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection test")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(missingTableErr()), storage.ErrSchemaMissing)

	other := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, error(other), classify(other))
	assert.NotErrorIs(t, classify(errors.New(`relation "users" does not exist`)), storage.ErrSchemaMissing)
}

func TestClose_IsSafeWithoutHandle(t *testing.T) {
	var nilStore *Store
	assert.NotPanics(t, nilStore.Close)

	empty := New(nil)
	assert.NotPanics(t, empty.Close)
	assert.NotPanics(t, empty.Close)
}

func TestPing(t *testing.T) {
	store, mock := newStoreWithMock(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("timeout"))

	assert.NoError(t, store.Ping(context.Background()))
	assert.Error(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
