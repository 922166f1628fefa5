// Package core defines the document store contract shared by every backend
// and the codecs used to serialize records.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver identifies a concrete document store implementation.
type Driver string

const (
	// DriverMemory keeps documents in process memory (tests, ephemeral runs).
	DriverMemory Driver = "memory"
	// DriverFilesystem stores one file per document under a root directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores one object per document in an S3 / MinIO bucket.
	DriverS3 Driver = "s3"
	// DriverSQLite stores documents in an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores documents in a PostgreSQL JSONB table.
	DriverPostgres Driver = "postgres"
)

// DefaultCollection is the collection pantry items live in.
const DefaultCollection = "pantry"

// Record is the field map stored under a document key.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Document pairs a key with its record.
type Document struct {
	Key    string
	Fields Record
}

// Store is a keyed document collection with single-document atomic reads and
// writes. It offers no cross-key transactions.
type Store interface {
	// Get returns the record stored under key; ok is false when absent.
	Get(ctx context.Context, collection, key string) (rec Record, ok bool, err error)
	// Set overwrites the record stored under key, creating it when absent.
	Set(ctx context.Context, collection, key string, rec Record) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, collection, key string) (bool, error)
	// List returns every document of the collection in the backend's enumeration order.
	List(ctx context.Context, collection string) ([]Document, error)
	// Driver returns the configured backend driver.
	Driver() Driver
	// Close releases backend resources.
	Close() error
}

// ErrInvalidKey is returned for empty collection names or document keys.
var ErrInvalidKey = errors.New("docstore: invalid key")

// CheckKey validates a collection/key pair before it reaches a backend.
func CheckKey(collection, key string) error {
	if err := CheckCollection(collection); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty document key", ErrInvalidKey)
	}
	return nil
}

// CheckCollection validates a collection name. Collections map onto
// directories and key prefixes, so separators are rejected.
func CheckCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidKey)
	}
	if strings.ContainsAny(collection, `/\`) || collection == "." || collection == ".." {
		return fmt.Errorf("%w: collection %q", ErrInvalidKey, collection)
	}
	return nil
}
