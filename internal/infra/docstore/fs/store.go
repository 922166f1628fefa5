// Package fs implements a document Store on the local filesystem.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pantry/internal/docstore/core"
)

// Store keeps one file per document at <root>/<collection>/<escaped key>.<codec>.
// Keys are path-escaped so any name maps to a single file. Writes go through
// a temp file and rename, so a reader never observes a partial record.
// On case-insensitive filesystems keys differing only in case collide.
type Store struct {
	root  string
	codec core.Codec
}

// New returns a filesystem-backed store rooted at root, creating it if needed.
func New(root string, codec core.Codec) (*Store, error) {
	if root == "" {
		root = "./pantrydata"
	}
	if codec == nil {
		codec = core.JSONCodec{}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, codec: codec}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) ext() string { return "." + s.codec.Name() }

// escapeKey maps a document key to a file name. A leading dot is escaped so
// keys cannot name "." or "..", hidden files, or in-flight temp files.
func escapeKey(key string) string {
	esc := url.PathEscape(key)
	if strings.HasPrefix(esc, ".") {
		esc = "%2E" + esc[1:]
	}
	return esc
}

func (s *Store) pathFor(collection, key string) (string, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, collection, escapeKey(key)+s.ext()), nil
}

func (s *Store) Get(ctx context.Context, collection, key string) (core.Record, bool, error) {
	path, err := s.pathFor(collection, key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec, err := s.codec.Unmarshal(b)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", collection, key, err)
	}
	return rec, true, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, rec core.Record) error {
	path, err := s.pathFor(collection, key)
	if err != nil {
		return err
	}
	b, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Delete(ctx context.Context, collection, key string) (bool, error) {
	path, err := s.pathFor(collection, key)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List reads every document file of the collection, ordered by key.
func (s *Store) List(ctx context.Context, collection string) ([]core.Document, error) {
	if err := core.CheckCollection(collection); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []core.Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, s.ext()) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, s.ext()))
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", name, err)
		}
		b, err := os.ReadFile(filepath.Join(s.root, collection, name))
		if err != nil {
			return nil, err
		}
		rec, err := s.codec.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, err)
		}
		docs = append(docs, core.Document{Key: key, Fields: rec})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

func (s *Store) Close() error { return nil }
