package autosave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meridianpress/draftsync/autosave/migrations"
	"github.com/meridianpress/draftsync/internal/common"
	"github.com/meridianpress/draftsync/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database using a DBTX
// (either *sql.DB or *sql.Tx). One row per draft key; the payload column
// holds the snapshot JSON document including the autosave timestamp.
type SQLiteStore struct {
	db     dbx.DBTX
	closer *sql.DB
}

// NewSQLiteStore wraps an already opened handle. The schema must have been
// migrated (see OpenSQLite). Close is a no-op for stores built this way;
// the caller owns the handle.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLite opens (or creates) the draft database at dsn and applies the
// embedded migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft database: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("failed to migrate draft database: %w", err)
	}

	return &SQLiteStore{db: db, closer: db}, nil
}

// Save upserts the snapshot under key, stamping it with the current time.
// The single-statement upsert keeps the write atomic for concurrent readers.
func (s *SQLiteStore) Save(ctx context.Context, key string, snap Snapshot) error {
	savedAt := time.Now().UTC().Format(time.RFC3339)

	doc := make(map[string]any, len(snap)+1)
	for k, v := range snap {
		doc[k] = v
	}
	doc[timestampField] = savedAt

	payload, err := json.Marshal(doc)
	if err != nil {
		return &common.LocalStorageError{Key: key, Err: err}
	}

	query := `INSERT INTO drafts (key, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`
	if _, err := s.db.ExecContext(ctx, query, key, string(payload), savedAt); err != nil {
		return &common.LocalStorageError{Key: key, Err: err}
	}
	return nil
}

// Load returns the snapshot stored under key with the autosave timestamp
// stripped, or common.ErrNotFound when no record exists.
func (s *SQLiteStore) Load(ctx context.Context, key string) (Snapshot, error) {
	var payload string
	query := `SELECT payload FROM drafts WHERE key = ?`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.LocalStorageError{Key: key, Err: common.ErrNotFound}
	}
	if err != nil {
		return nil, &common.LocalStorageError{Key: key, Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, &common.LocalStorageError{Key: key, Err: err}
	}
	delete(snap, timestampField)
	return snap, nil
}

// Clear removes the record under key. Clearing an absent key is not an error.
func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return &common.LocalStorageError{Key: key, Err: err}
	}
	return nil
}

// Close closes the underlying database when the store opened it itself.
func (s *SQLiteStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
