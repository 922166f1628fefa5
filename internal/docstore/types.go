// Package docstore re-exports the document store contract and selects a
// backend implementation from configuration.
package docstore

import (
	"pantry/internal/docstore/core"
)

type (
	// Driver identifies a document store backend.
	Driver = core.Driver
	// Record is the field map stored under a document key.
	Record = core.Record
	// Document pairs a key with its record.
	Document = core.Document
	// Store is the interface implemented by every backend.
	Store = core.Store
	// Codec serializes records for payload-oriented backends.
	Codec = core.Codec
)

const (
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverSQLite is the embedded sqlite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the PostgreSQL driver.
	DriverPostgres = core.DriverPostgres

	// DefaultCollection is the collection pantry items live in.
	DefaultCollection = core.DefaultCollection
)

// ErrInvalidKey indicates an empty or malformed collection or key.
var ErrInvalidKey = core.ErrInvalidKey
