// Package worlddb is the sqlite-backed Change-Log Store: one row per world,
// with the change log held as a JSON-encoded column so insertion order
// round-trips exactly.
package worlddb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mycraft.gg/internal/world"
)

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection makes every append a critical section: concurrent
	// read-modify-writes of a change log serialize here instead of interleaving.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-heavy workload.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed TEXT NOT NULL,
			changes TEXT NOT NULL DEFAULT '[]',
			last_updated TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create allocates a new world id and persists the record with an empty change
// log. The row is visible to Get as soon as Create returns.
func (s *SQLiteStore) Create(ctx context.Context, seed string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO worlds(seed, changes, last_updated) VALUES(?, '[]', ?)`, seed, now)
	if err != nil {
		return 0, &world.StorageError{Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &world.StorageError{Err: err}
	}
	return id, nil
}

// Get returns the full current record, or world.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (world.World, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, changes, last_updated FROM worlds WHERE id = ?`, id)

	var (
		w   world.World
		raw string
		ts  string
	)
	if err := row.Scan(&w.ID, &w.Seed, &raw, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return world.World{}, world.ErrNotFound
		}
		return world.World{}, &world.StorageError{Err: err}
	}

	changes, err := decodeChanges(raw)
	if err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}
	w.Changes = changes

	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return world.World{}, &world.StorageError{Err: fmt.Errorf("parse last_updated: %w", err)}
	}
	w.LastUpdated = at
	return w, nil
}

// AppendChanges extends the stored log with the batch, in the order given, and
// advances last_updated. All-or-nothing: the read-modify-write runs in one
// transaction, so either the whole batch commits or the row is untouched.
func (s *SQLiteStore) AppendChanges(ctx context.Context, id int64, changes []world.BlockChange) (world.World, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var (
		seed string
		raw  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seed, changes FROM worlds WHERE id = ?`, id).Scan(&seed, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return world.World{}, world.ErrNotFound
	}
	if err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}

	entries, err := decodeChanges(raw)
	if err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}
	entries = append(entries, changes...)

	buf, err := json.Marshal(entries)
	if err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE worlds SET changes = ?, last_updated = ? WHERE id = ?`,
		string(buf), now.Format(time.RFC3339Nano), id); err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}
	if err := tx.Commit(); err != nil {
		return world.World{}, &world.StorageError{Err: err}
	}

	return world.World{ID: id, Seed: seed, Changes: entries, LastUpdated: now}, nil
}

func decodeChanges(raw string) ([]world.BlockChange, error) {
	changes := []world.BlockChange{}
	if raw == "" {
		return changes, nil
	}
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	if changes == nil {
		changes = []world.BlockChange{}
	}
	return changes, nil
}
