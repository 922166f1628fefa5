// Package postgres provides a document Store on a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pantry/internal/docstore/core"
)

// Compile-time contract assertion ensuring the store satisfies the document store interface.
var _ core.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pantry?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const (
	ensureTableSQL = `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, key)
	)`
	selectOneSQL = `SELECT payload FROM documents WHERE collection = $1 AND key = $2`
	selectAllSQL = `SELECT key, payload FROM documents WHERE collection = $1 ORDER BY key`
	upsertSQL    = `INSERT INTO documents (collection, key, payload, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	deleteSQL = `DELETE FROM documents WHERE collection = $1 AND key = $2`
)

// Store persists documents as JSONB rows. Payloads are always JSON because the
// column type requires it.
type Store struct {
	db    *sql.DB
	codec core.JSONCodec
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), verifies connectivity and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ensureTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverPostgres }

func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectOneSQL, collection, key).Scan(&payload)
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
	if _, err := s.db.ExecContext(ctx, upsertSQL, collection, key, string(payload)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) (bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, deleteSQL, collection, key)
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
	rows, err := s.db.QueryContext(ctx, selectAllSQL, collection)
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

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
