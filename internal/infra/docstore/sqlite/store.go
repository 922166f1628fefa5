// Package sqlite implements a document Store in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pantry/internal/docstore/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store keeps documents in a single table keyed by (collection, key) with
// codec-encoded payloads. Every call is a single statement, so each document
// read or write is atomic.
type Store struct {
	db    *sql.DB
	codec core.Codec
}

// NewStore opens (creating if needed) the sqlite file at path.
func NewStore(path string, codec core.Codec) (*Store, error) {
	if path == "" {
		path = "pantry.db"
	}
	if codec == nil {
		codec = core.JSONCodec{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, key)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db, codec: codec}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverSQLite }

func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE collection = ? AND key = ?`, collection, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s/%s: %w", collection, key, err)
	}
	rec, err := s.codec.Unmarshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", collection, key, err)
	}
	return rec, true, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, rec core.Record) error {
	if err := core.CheckKey(collection, key); err != nil {
		return err
	}
	payload, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents(collection, key, payload, updated_at) VALUES(?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`, collection, key, payload); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) (bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]core.Document, error) {
	if err := core.CheckCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, payload FROM documents WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()
	docs := []core.Document{}
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec, err := s.codec.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, err)
		}
		docs = append(docs, core.Document{Key: key, Fields: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
