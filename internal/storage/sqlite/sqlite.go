// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var (
	_ storage.Store             = (*SQLiteStore)(nil)
	_ storage.FingerprintGetter = (*SQLiteStore)(nil)
)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers would otherwise fail fast with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves a group by identity.
func (s *SQLiteStore) Get(ctx context.Context, id models.Identity) (models.Group, error) {
	return s.GetByKey(ctx, storage.Key(id))
}

// GetByKey retrieves a group by its storage key.
func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (models.Group, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM groups WHERE key = ?",
		key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.Group{}, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to get group: %w", err)
	}

	g, err := codec.DecodeBytes(payload)
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to decode stored group %s: %w", key, err)
	}
	return g, nil
}

// Put inserts or replaces a group.
func (s *SQLiteStore) Put(ctx context.Context, g models.Group) error {
	payload, err := codec.EncodeBytes(g)
	if err != nil {
		return fmt.Errorf("failed to encode group: %w", err)
	}
	fingerprint, err := codec.Fingerprint(g)
	if err != nil {
		return fmt.Errorf("failed to fingerprint group: %w", err)
	}

	key := storage.Key(g.Identity())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO groups (key, description, created_at, schema_version, revision, fingerprint, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		     schema_version = excluded.schema_version,
		     revision = excluded.revision,
		     fingerprint = excluded.fingerprint,
		     payload = excluded.payload,
		     updated_at = excluded.updated_at`,
		key, g.Description, g.Timestamp, g.SchemaVersion, g.Revision, fingerprint, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store group: %w", err)
	}

	slog.Debug("Group stored", "key", key, "revision", g.Revision, "fingerprint", fingerprint)
	return nil
}

// List returns all stored identities, oldest group first.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT description, created_at FROM groups ORDER BY created_at, description",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var ids []models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.Description, &id.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return ids, nil
}

// Delete removes a group by identity.
func (s *SQLiteStore) Delete(ctx context.Context, id models.Identity) error {
	key := storage.Key(id)
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return nil
}

// Fingerprint returns the stored fingerprint of a group without decoding it.
func (s *SQLiteStore) Fingerprint(ctx context.Context, id models.Identity) (string, error) {
	var fingerprint string
	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint FROM groups WHERE key = ?",
		storage.Key(id),
	).Scan(&fingerprint)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, storage.Key(id))
	}
	if err != nil {
		return "", fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return fingerprint, nil
}
