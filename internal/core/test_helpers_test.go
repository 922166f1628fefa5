package core

import (
	"context"
	"errors"
	"testing"

	"pantry/internal/docstore"
	"pantry/pkg/domain"
)

var errBackend = errors.New("backend offline")

// flakyStore wraps a Store and fails selected calls.
type flakyStore struct {
	docstore.Store
	failGet    bool
	failSet    bool
	failDelete bool
	failList   bool
	sets       int
	deletes    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: docstore.NewMemory()}
}

func (f *flakyStore) Get(ctx context.Context, collection, key string) (docstore.Record, bool, error) {
	if f.failGet {
		return nil, false, errBackend
	}
	return f.Store.Get(ctx, collection, key)
}

func (f *flakyStore) Set(ctx context.Context, collection, key string, rec docstore.Record) error {
	if f.failSet {
		return errBackend
	}
	f.sets++
	return f.Store.Set(ctx, collection, key, rec)
}

func (f *flakyStore) Delete(ctx context.Context, collection, key string) (bool, error) {
	if f.failDelete {
		return false, errBackend
	}
	f.deletes++
	return f.Store.Delete(ctx, collection, key)
}

func (f *flakyStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if f.failList {
		return nil, errBackend
	}
	return f.Store.List(ctx, collection)
}

func item(name string, qty int, weight float64, unit domain.Unit, category domain.Category) domain.Item {
	return domain.Item{Name: name, Quantity: qty, Weight: weight, Unit: unit, Category: category}
}

func seed(t *testing.T, store docstore.Store, name string, rec docstore.Record) {
	t.Helper()
	if err := store.Set(context.Background(), docstore.DefaultCollection, name, rec); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func mustGet(t *testing.T, inv *InventoryStore, name string) domain.Item {
	t.Helper()
	got, ok, err := inv.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	if !ok {
		t.Fatalf("expected %s to be stored", name)
	}
	return got
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
