// Package memory implements an in-memory document Store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"pantry/internal/docstore/core"
)

// Store implements core.Store backed by process memory. Records are kept
// encoded so numeric values decode the same way they do on durable backends.
type Store struct {
	mu    sync.RWMutex
	codec core.Codec
	colls map[string]map[string][]byte
}

// New returns an in-memory store using the JSON codec.
func New() *Store { return NewWithCodec(core.JSONCodec{}) }

// NewWithCodec returns an in-memory store that encodes records with codec.
func NewWithCodec(codec core.Codec) *Store {
	if codec == nil {
		codec = core.JSONCodec{}
	}
	return &Store{codec: codec, colls: make(map[string]map[string][]byte)}
}

// Driver returns the memory driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Get returns a decoded copy of the stored record.
func (s *Store) Get(_ context.Context, collection, key string) (core.Record, bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	b, ok := s.colls[collection][key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	rec, err := s.codec.Unmarshal(b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Set overwrites the record under key.
func (s *Store) Set(_ context.Context, collection, key string, rec core.Record) error {
	if err := core.CheckKey(collection, key); err != nil {
		return err
	}
	b, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.colls[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.colls[collection] = docs
	}
	docs[key] = b
	return nil
}

// Delete removes key returning true if it existed.
func (s *Store) Delete(_ context.Context, collection, key string) (bool, error) {
	if err := core.CheckKey(collection, key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.colls[collection]
	if _, ok := docs[key]; !ok {
		return false, nil
	}
	delete(docs, key)
	return true, nil
}

// List returns the collection's documents ordered by key.
func (s *Store) List(_ context.Context, collection string) ([]core.Document, error) {
	if err := core.CheckCollection(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw := make(map[string][]byte, len(s.colls[collection]))
	for k, v := range s.colls[collection] {
		raw[k] = v
	}
	s.mu.RUnlock()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]core.Document, 0, len(keys))
	for _, k := range keys {
		rec, err := s.codec.Unmarshal(raw[k])
		if err != nil {
			return nil, err
		}
		out = append(out, core.Document{Key: k, Fields: rec})
	}
	return out, nil
}

// Close is a no-op; the store stays usable so tests can inspect it afterwards.
func (s *Store) Close() error { return nil }
