package docstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"pantry/internal/docstore/core"
)

// Config selects and parameterizes a backend.
type Config struct {
	Driver     Driver `yaml:"driver"`
	Collection string `yaml:"collection"`
	// Codec names the payload encoding for memory, fs, s3 and sqlite
	// (json|msgpack). Postgres always stores JSON.
	Codec       string   `yaml:"codec"`
	SQLitePath  string   `yaml:"sqlite_path"`
	PostgresDSN string   `yaml:"postgres_dsn"`
	FSRoot      string   `yaml:"fs_root"`
	S3          S3Config `yaml:"s3"`
}

// DefaultConfig returns the sqlite driver at ./pantry.db on the default collection.
func DefaultConfig() Config {
	return Config{
		Driver:     DriverSQLite,
		Collection: DefaultCollection,
		Codec:      core.CodecJSON,
		SQLitePath: "pantry.db",
	}
}

// WithEnv returns a copy of c overridden by any set environment variables.
//
//	PANTRY_DOCSTORE_DRIVER: memory|fs|s3|sqlite|postgres
//	PANTRY_DOCSTORE_CODEC: json|msgpack
//	PANTRY_COLLECTION: collection name (default pantry)
//	PANTRY_SQLITE_PATH: database file when driver=sqlite
//	PANTRY_POSTGRES_DSN: connection string when driver=postgres
//	PANTRY_FS_ROOT: directory root when driver=fs
//	PANTRY_S3_*: see the s3 backend
func (c Config) WithEnv() Config {
	if v, ok := os.LookupEnv("PANTRY_DOCSTORE_DRIVER"); ok && v != "" {
		c.Driver = Driver(strings.ToLower(v))
	}
	setString(&c.Codec, "PANTRY_DOCSTORE_CODEC")
	setString(&c.Collection, "PANTRY_COLLECTION")
	setString(&c.SQLitePath, "PANTRY_SQLITE_PATH")
	setString(&c.PostgresDSN, "PANTRY_POSTGRES_DSN")
	setString(&c.FSRoot, "PANTRY_FS_ROOT")
	setString(&c.S3.Bucket, "PANTRY_S3_BUCKET")
	setString(&c.S3.Region, "PANTRY_S3_REGION")
	setString(&c.S3.Prefix, "PANTRY_S3_PREFIX")
	setString(&c.S3.Endpoint, "PANTRY_S3_ENDPOINT")
	if v, ok := os.LookupEnv("PANTRY_S3_PATH_STYLE"); ok && v != "" {
		c.S3.PathStyle = strings.EqualFold(v, "true")
	}
	return c
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the environment.
func ConfigFromEnv() Config {
	return DefaultConfig().WithEnv()
}

// Validate checks the driver, codec and collection before anything is opened.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory, DriverFilesystem, DriverS3, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown docstore driver %s", c.Driver)
	}
	if _, err := core.CodecByName(c.Codec); err != nil {
		return err
	}
	if err := core.CheckCollection(c.Collection); err != nil {
		return err
	}
	if c.Driver == DriverS3 && c.S3.Bucket == "" {
		return fmt.Errorf("PANTRY_S3_BUCKET required for s3 driver")
	}
	return nil
}

// Open validates cfg and constructs the selected backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := core.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryWithCodec(codec), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, codec)
	case DriverS3:
		return NewS3(ctx, cfg.S3, codec)
	case DriverSQLite:
		return NewSQLite(cfg.SQLitePath, codec)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown docstore driver %s", cfg.Driver)
	}
}

// OpenFromEnv opens the backend described by ConfigFromEnv.
func OpenFromEnv(ctx context.Context) (Store, error) {
	return Open(ctx, ConfigFromEnv())
}
