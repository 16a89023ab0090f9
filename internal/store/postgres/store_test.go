package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/password"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "8d4f7c2e-3b1a-4f5e-9c6d-2a1b0c9d8e7f"

func newStoreWithMock(t *testing.T) (*UserStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	hasher, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserStore(db, hasher), mock, db
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "active", "email_verified"})
}

var (
	_ insightx.UserStore        = (*UserStore)(nil)
	_ insightx.PasswordUpgrader = (*UserStore)(nil)
)

func TestFindByID_Found(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	q := `(?s)^SELECT\s+id,\s*username,\s*email,\s*password_hash,\s*role,\s*active,\s*email_verified\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs(userID).
		WillReturnRows(userRows().AddRow(userID, "ada", "ada@example.com", "$argon2id$x", "ADMIN", true, true))

	p, err := store.FindByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, userID, p.ID)
	assert.Equal(t, "ada", p.Username)
	assert.Equal(t, insightx.RoleAdmin, p.Role)
	assert.True(t, p.Active)
	assert.True(t, p.EmailVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.+FROM\s+users\s+WHERE\s+id`).
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)

	p, err := store.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFindByID_NonUUIDSkipsQuery(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	p, err := store.FindByID(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_DBError(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.+FROM\s+users`).
		WithArgs(userID).
		WillReturnError(errors.New("db down"))

	_, err := store.FindByID(context.Background(), userID)
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestFindByLogin_MatchesUsernameOrEmail(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	q := `(?s)^SELECT.+FROM\s+users\s+WHERE\s+lower\(username\)\s*=\s*lower\(\$1\)\s+OR\s+lower\(email\)\s*=\s*lower\(\$1\)\s+LIMIT\s+1\s*$`
	mock.ExpectQuery(q).
		WithArgs("Ada@Example.com").
		WillReturnRows(userRows().AddRow(userID, "ada", "ada@example.com", "h", "USER", true, false))

	p, err := store.FindByLogin(context.Background(), "  Ada@Example.com ")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, insightx.RoleUser, p.Role)
	assert.False(t, p.EmailVerified)

	p, err = store.FindByLogin(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByLogin_NormalisesRole(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.+FROM\s+users`).
		WithArgs("ada").
		WillReturnRows(userRows().AddRow(userID, "ada", "ada@example.com", "h", " admin ", true, true))
	mock.ExpectQuery(`(?s)^SELECT.+FROM\s+users`).
		WithArgs("bob").
		WillReturnRows(userRows().AddRow(userID, "bob", "bob@example.com", "h", "root", true, true))

	p, err := store.FindByLogin(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, insightx.RoleAdmin, p.Role)

	p, err = store.FindByLogin(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, p.Role.Valid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPassword(t *testing.T) {
	store, _, _ := newStoreWithMock(t)

	hash, err := store.hasher.Hash("correct-horse")
	require.NoError(t, err)
	p := &insightx.Principal{ID: userID, PasswordHash: hash}

	ok, err := store.VerifyPassword(context.Background(), p, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.VerifyPassword(context.Background(), p, "wrong-horse")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.VerifyPassword(context.Background(), &insightx.Principal{ID: userID}, "correct-horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdatePasswordHash(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs(userID, "new-hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(userID, "new-hash").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.UpdatePasswordHash(context.Background(), userID, "new-hash"))
	assert.ErrorIs(t, store.UpdatePasswordHash(context.Background(), userID, "new-hash"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Success(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*email,\s*password_hash,\s*role,\s*active,\s*email_verified\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`
	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "ada", "ada@example.com", sqlmock.AnyArg(), "USER", true, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := store.Create(context.Background(), NewUser{
		Username:      " ada ",
		Email:         "ada@example.com",
		Password:      "correct-horse",
		Active:        true,
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Len(t, p.ID, 36)
	assert.Equal(t, insightx.RoleUser, p.Role)

	ok, err := store.VerifyPassword(context.Background(), p, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	_, err := store.Create(context.Background(), NewUser{Username: "ada", Email: "a@b.c", Password: "short"})
	assert.ErrorIs(t, err, password.ErrTooShort)

	_, err = store.Create(context.Background(), NewUser{Username: "ada", Email: "a@b.c", Password: "long-enough", Role: "ROOT"})
	assert.Error(t, err)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	_, err = store.Create(context.Background(), NewUser{Username: "ada", Email: "a@b.c", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrDuplicate)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))
	_, err = store.Create(context.Background(), NewUser{Username: "ada", Email: "a@b.c", Password: "long-enough"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	_, _, db := newStoreWithMock(t)

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var dir string
	gooseUp = func(_ context.Context, _ *sql.DB, d string, _ ...goose.OptionsFunc) error {
		dir = d
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", dir)

	gooseUp = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration error")
}
