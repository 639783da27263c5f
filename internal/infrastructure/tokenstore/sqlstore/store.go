package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store persists the credential token per user in a SQL table. The queries
// run unchanged on SQLite and PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
	userID string
}

func New(db *sql.DB, driver, userID string) *Store {
	if userID == "" {
		userID = "default_user"
	}
	return &Store{db: db, driver: driver, userID: userID}
}

func OpenDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported token store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between the callback server and the REPL.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.driver == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	const query = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	user_id TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NULL
)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*domain.StoredToken, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, saved_at, expires_at
FROM oauth_tokens
WHERE user_id = $1
`, s.userID)

	var (
		raw       string
		token     domain.StoredToken
		expiresAt sql.NullTime
	)
	if err := row.Scan(&raw, &token.SavedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	token.Token = []byte(raw)
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		token.ExpiresAt = &t
	}
	return &token, nil
}

func (s *Store) Save(ctx context.Context, token domain.StoredToken) error {
	if len(token.Token) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "save token", errors.New("token is empty"))
	}
	if token.SavedAt.IsZero() {
		token.SavedAt = time.Now().UTC()
	}

	var expiresAt sql.NullTime
	if token.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: token.ExpiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO oauth_tokens (user_id, token, saved_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
	token = excluded.token,
	saved_at = excluded.saved_at,
	expires_at = excluded.expires_at
`, s.userID, string(token.Token), token.SavedAt.UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1`, s.userID); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
