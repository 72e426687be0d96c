package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"prism.app/licensing/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists license records and the email index as versioned JSON
// values in a key-value table, with a separate table for expiring counters.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.License, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var license models.License
	if err := json.Unmarshal([]byte(value), &license); err != nil {
		return nil, fmt.Errorf("failed to decode license record: %w", err)
	}

	return &license, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, license *models.License) error {
	value, err := json.Marshal(license)
	if err != nil {
		return fmt.Errorf("failed to encode license record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("failed to save license: %w", err)
	}

	return nil
}

func (s *SQLiteStore) AppendEmailIndex(ctx context.Context, email, key string) error {
	keys, err := s.GetEmailIndex(ctx, email)
	if err != nil {
		return err
	}
	keys = append(keys, key)

	value, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode email index: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		emailIndexKey(email), string(value))
	if err != nil {
		return fmt.Errorf("failed to save email index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetEmailIndex(ctx context.Context, email string) ([]string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, emailIndexKey(email)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal([]byte(value), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode email index: %w", err)
	}

	return keys, nil
}

func (s *SQLiteStore) ListByPrefix(ctx context.Context, prefix, cursor string, limit int) ([]*models.License, string, bool, error) {
	// Fetch one extra row to learn whether the enumeration is complete.
	rows, err := s.db.QueryContext(ctx,
		`SELECT v FROM kv WHERE k LIKE ? || '%' AND k > ? ORDER BY k LIMIT ?`,
		prefix, cursor, limit+1)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to query licenses: %w", err)
	}
	defer rows.Close()

	var items []*models.License
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, "", false, fmt.Errorf("failed to scan license: %w", err)
		}

		var license models.License
		if err := json.Unmarshal([]byte(value), &license); err != nil {
			return nil, "", false, fmt.Errorf("failed to decode license record: %w", err)
		}
		items = append(items, &license)
	}
	if err := rows.Err(); err != nil {
		return nil, "", false, fmt.Errorf("error iterating licenses: %w", err)
	}

	complete := true
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		complete = false
	}

	nextCursor := ""
	if !complete && len(items) > 0 {
		nextCursor = items[len(items)-1].Key
	}

	return items, nextCursor, complete, nil
}

// IncrCounter is a get-then-put: the store has no atomic increment, so two
// concurrent requests can both read N and write N+1. Accepted as best-effort.
func (s *SQLiteStore) IncrCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now().Unix()

	var count int
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, expires_at FROM counters WHERE k = ?`, key).Scan(&count, &expiresAt)

	if err == sql.ErrNoRows || (err == nil && expiresAt <= now) {
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO counters (k, count, expires_at) VALUES (?, 1, ?)`,
			key, now+int64(window.Seconds()))
		if err != nil {
			return 0, fmt.Errorf("failed to reset counter: %w", err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	count++
	_, err = s.db.ExecContext(ctx, `UPDATE counters SET count = ? WHERE k = ?`, count, key)
	if err != nil {
		return 0, fmt.Errorf("failed to update counter: %w", err)
	}

	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
