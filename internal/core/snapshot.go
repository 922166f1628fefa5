package core

import (
	"context"
	"sync"

	"pantry/pkg/domain"
)

// Snapshot caches the result of FetchAll under a single rule: any local
// mutation invalidates it and the next read reloads the whole collection.
// A failed reload leaves the cache invalid so a stale list is never served.
type Snapshot struct {
	inv *InventoryStore

	mu    sync.Mutex
	items []domain.Item
	valid bool
}

// NewSnapshot returns an invalid snapshot over inv.
func NewSnapshot(inv *InventoryStore) *Snapshot {
	return &Snapshot{inv: inv}
}

// Invalidate drops the cached items.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.items = nil
	s.valid = false
	s.mu.Unlock()
}

// Load reloads the snapshot from the store unconditionally.
func (s *Snapshot) Load(ctx context.Context) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Items returns the cached items, loading them first when invalid. The
// returned slice is a copy.
func (s *Snapshot) Items(ctx context.Context) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid {
		return append([]domain.Item(nil), s.items...), nil
	}
	return s.loadLocked(ctx)
}

// Valid reports whether the cache currently holds an authoritative list.
func (s *Snapshot) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *Snapshot) loadLocked(ctx context.Context) ([]domain.Item, error) {
	s.items = nil
	s.valid = false
	items, err := s.inv.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	s.valid = true
	return append([]domain.Item(nil), items...), nil
}
