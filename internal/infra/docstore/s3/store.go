// Package s3 implements a document Store on an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pantry/internal/docstore/core"
)

// Store implements core.Store using an S3-compatible backend (AWS S3 or MinIO).
// Each document is one object at <prefix><collection>/<escaped key>.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	codec  core.Codec
}

// Config holds explicit construction parameters. For prod we rely primarily
// on environment variables (see OpenFromEnv).
type Config struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	// Prefix is an optional object key prefix, e.g. "env/prod/".
	Prefix string `yaml:"prefix"`
	// Endpoint enables a custom endpoint (e.g. MinIO) when set.
	Endpoint string `yaml:"endpoint"`
	// Static credentials; the default credentials chain is used when empty.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	PathStyle       bool   `yaml:"path_style"`
}

// Environment variables:
//   PANTRY_S3_BUCKET=<bucket> (required)
//   PANTRY_S3_REGION=<region> (default us-east-1)
//   PANTRY_S3_PREFIX=<prefix> (optional)
//   PANTRY_S3_ENDPOINT=<url> (optional, for MinIO)
//   PANTRY_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 document store from Config.
func New(ctx context.Context, cfg Config, codec core.Codec) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if codec == nil {
		codec = core.JSONCodec{}
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, codec: codec}, nil
}

// ConfigFromEnv reads the S3 configuration from the process environment.
func ConfigFromEnv() Config {
	return Config{
		Bucket:    os.Getenv("PANTRY_S3_BUCKET"),
		Region:    os.Getenv("PANTRY_S3_REGION"),
		Prefix:    os.Getenv("PANTRY_S3_PREFIX"),
		Endpoint:  os.Getenv("PANTRY_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PANTRY_S3_PATH_STYLE"), "true"),
	}
}

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context, codec core.Codec) (*Store, error) {
	cfg := ConfigFromEnv()
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("PANTRY_S3_BUCKET required for s3 driver")
	}
	return New(ctx, cfg, codec)
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

func (s *Store) collectionPrefix(collection string) string {
	return s.prefix + collection + "/"
}

func (s *Store) objectKey(collection, key string) (string, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return "", err
	}
	return s.collectionPrefix(collection) + url.PathEscape(key), nil
}

func (s *Store) contentType() string {
	if s.codec.Name() == core.CodecJSON {
		return "application/json"
	}
	return "application/" + s.codec.Name()
}

func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, bool, error) {
	objKey, err := s.objectKey(collection, key)
	if err != nil {
		return nil, false, err
	}
	rec, err := s.read(ctx, objKey)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) read(ctx context.Context, objKey string) (core.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	rec, err := s.codec.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", objKey, err)
	}
	return rec, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, rec core.Record) error {
	objKey, err := s.objectKey(collection, key)
	if err != nil {
		return err
	}
	b, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	ct := s.contentType()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(b),
		ContentType: &ct,
	})
	return err
}

// Delete heads the object first because DeleteObject succeeds for missing keys.
func (s *Store) Delete(ctx context.Context, collection, key string) (bool, error) {
	objKey, err := s.objectKey(collection, key)
	if err != nil {
		return false, err
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &objKey}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &objKey}); err != nil {
		return false, err
	}
	return true, nil
}

// List pages through the collection prefix and fetches every object. An
// object deleted between listing and fetching is skipped.
func (s *Store) List(ctx context.Context, collection string) ([]core.Document, error) {
	if err := core.CheckCollection(collection); err != nil {
		return nil, err
	}
	prefix := s.collectionPrefix(collection)
	var objKeys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			objKeys = append(objKeys, aws.ToString(obj.Key))
		}
	}
	docs := make([]core.Document, 0, len(objKeys))
	for _, objKey := range objKeys {
		rest := strings.TrimPrefix(objKey, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		key, err := url.PathUnescape(rest)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", objKey, err)
		}
		rec, err := s.read(ctx, objKey)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, core.Document{Key: key, Fields: rec})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
