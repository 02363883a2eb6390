package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	itemsMu sync.Mutex // serializes item writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		visitor_id TEXT NOT NULL,
		item_key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (visitor_id, item_key)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, label, last_seen_at, created_at, updated_at
		FROM visitors WHERE visitor_id = ?`

	row := s.db.QueryRowContext(ctx, query, visitorID)

	var visitor domain.Visitor
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&visitor.VisitorID, &visitor.Label, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	visitor.LastSeenAt = time.Unix(lastSeen, 0)
	visitor.CreatedAt = time.Unix(createdAt, 0)
	visitor.UpdatedAt = time.Unix(updatedAt, 0)

	return &visitor, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, label, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		label = excluded.label,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		visitor.VisitorID, visitor.Label,
		visitor.LastSeenAt.Unix(), visitor.CreatedAt.Unix(), visitor.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET last_seen_at = ?, updated_at = ? WHERE visitor_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), visitorID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "visitor_id", visitorID)
	}

	return nil
}

// GetItem returns the value stored under key for a visitor.
func (s *SQLiteStore) GetItem(ctx context.Context, visitorID, key string) (string, bool, error) {
	query := `SELECT value FROM items WHERE visitor_id = ? AND item_key = ?`

	var value string
	err := s.db.QueryRowContext(ctx, query, visitorID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem stores value under key for a visitor.
func (s *SQLiteStore) SetItem(ctx context.Context, visitorID, key, value string) error {
	query := `
	INSERT INTO items (visitor_id, item_key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(visitor_id, item_key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	return s.withBusyRetry(ctx, "set item", visitorID, func() error {
		_, err := s.db.ExecContext(ctx, query, visitorID, key, value, time.Now().Unix())
		return err
	})
}

// RemoveItem deletes key for a visitor.
func (s *SQLiteStore) RemoveItem(ctx context.Context, visitorID, key string) error {
	query := `DELETE FROM items WHERE visitor_id = ? AND item_key = ?`

	return s.withBusyRetry(ctx, "remove item", visitorID, func() error {
		_, err := s.db.ExecContext(ctx, query, visitorID, key)
		return err
	})
}

// withBusyRetry runs a write with exponential backoff on SQLITE_BUSY errors.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, op, visitorID string, write func() error) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		s.itemsMu.Lock()
		err = write()
		s.itemsMu.Unlock()
		if err == nil {
			return nil
		}

		if !isConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("Store write failed with SQLITE_BUSY, retrying",
			"op", op,
			"visitor_id", visitorID,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s for %s: %w", op, visitorID, err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
