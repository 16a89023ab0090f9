package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/internal/store/postgres/migrations"
	"github.com/Lionel-Logan/InsightX/password"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var (
	// ErrNotFound is returned by writes that match no user.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned by Create when the username or email is taken.
	ErrDuplicate = errors.New("username or email already registered")
)

const uniqueViolation = "23505"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserStore reads and writes principals in the users table.
type UserStore struct {
	db     DBTX
	hasher *password.Hasher
}

// NewUserStore returns a store over db that hashes and verifies passwords
// with hasher.
func NewUserStore(db DBTX, hasher *password.Hasher) *UserStore {
	return &UserStore{db: db, hasher: hasher}
}

// Open connects through the pgx driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

const selectColumns = `id, username, email, password_hash, role, active, email_verified`

// FindByID returns the user with id, or (nil, nil) when there is none. Ids
// that are not UUIDs cannot exist and short-circuit to (nil, nil).
func (s *UserStore) FindByID(ctx context.Context, id string) (*insightx.Principal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query :=
		`SELECT ` + selectColumns + ` FROM users
		 WHERE id = $1
		 `
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// FindByLogin matches login case-insensitively against username or email.
func (s *UserStore) FindByLogin(ctx context.Context, login string) (*insightx.Principal, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, nil
	}
	query :=
		`SELECT ` + selectColumns + ` FROM users
		 WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		 LIMIT 1
		 `
	return s.scanOne(s.db.QueryRowContext(ctx, query, login))
}

func (s *UserStore) scanOne(row *sql.Row) (*insightx.Principal, error) {
	var (
		p    insightx.Principal
		role string
	)
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &role, &p.Active, &p.EmailVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.Role = insightx.Role(strings.ToUpper(strings.TrimSpace(role)))
	return &p, nil
}

// VerifyPassword checks plaintext against the principal's stored hash.
func (s *UserStore) VerifyPassword(_ context.Context, p *insightx.Principal, plaintext string) (bool, error) {
	if p == nil || p.PasswordHash == "" {
		return false, nil
	}
	return s.hasher.Verify(plaintext, p.PasswordHash)
}

// UpdatePasswordHash replaces the stored hash for id.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	res, err := s.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// NewUser is the input to Create.
type NewUser struct {
	Username      string
	Email         string
	Password      string
	Role          insightx.Role
	Active        bool
	EmailVerified bool
}

// Create hashes the password and inserts a user with a fresh UUID.
func (s *UserStore) Create(ctx context.Context, in NewUser) (*insightx.Principal, error) {
	role := in.Role
	if role == "" {
		role = insightx.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unsupported role %q", role)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	p := &insightx.Principal{
		ID:            uuid.NewString(),
		Username:      strings.TrimSpace(in.Username),
		Email:         strings.TrimSpace(in.Email),
		Role:          role,
		Active:        in.Active,
		EmailVerified: in.EmailVerified,
		PasswordHash:  hash,
	}

	query :=
		`INSERT INTO users (id, username, email, password_hash, role, active, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Username, p.Email, p.PasswordHash, string(p.Role), p.Active, p.EmailVerified)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}
