package docstore

import (
	"context"

	"pantry/internal/docstore/core"
	fsstore "pantry/internal/infra/docstore/fs"
	memorystore "pantry/internal/infra/docstore/memory"
	pgstore "pantry/internal/infra/docstore/postgres"
	infraS3 "pantry/internal/infra/docstore/s3"
	sqlitestore "pantry/internal/infra/docstore/sqlite"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewMemory returns an in-memory Store suitable for tests and ephemeral runs.
func NewMemory() Store { return memorystore.New() }

// NewMemoryWithCodec returns an in-memory Store that encodes records with codec.
func NewMemoryWithCodec(codec Codec) Store { return memorystore.NewWithCodec(codec) }

// NewFilesystem returns a Store keeping one file per document under root.
func NewFilesystem(root string, codec Codec) (Store, error) {
	store, err := fsstore.New(root, codec)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewSQLite opens (creating when needed) a sqlite-backed Store at path.
func NewSQLite(path string, codec Codec) (Store, error) {
	store, err := sqlitestore.NewStore(path, codec)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgres opens a Postgres-backed Store.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	store, err := pgstore.NewStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config, codec Codec) (Store, error) {
	store, err := infraS3.New(ctx, cfg, codec)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests exposes the in-process S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests(core.JSONCodec{}) }
