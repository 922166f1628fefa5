package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pantry/internal/docstore/core"
)

func TestStore_AllBranches(t *testing.T) {
	store := New()
	ctx := context.Background()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	if _, ok, err := store.Get(ctx, "pantry", "missing"); err != nil || ok {
		t.Fatalf("expected missing get, got ok=%v err=%v", ok, err)
	}
	if ok, err := store.Delete(ctx, "pantry", "missing"); err != nil || ok {
		t.Fatalf("expected delete false")
	}
	if err := store.Set(ctx, "pantry", "pear", core.Record{"quantity": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "pantry", "apple", core.Record{"quantity": 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "pantry", "apple", core.Record{"quantity": 3}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rec, ok, err := store.Get(ctx, "pantry", "apple")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if rec["quantity"] != json.Number("3") {
		t.Fatalf("expected overwritten quantity, got %#v", rec["quantity"])
	}
	docs, err := store.List(ctx, "pantry")
	if err != nil || len(docs) != 2 {
		t.Fatalf("list: %v %d", err, len(docs))
	}
	if docs[0].Key != "apple" || docs[1].Key != "pear" {
		t.Fatalf("expected key order, got %s,%s", docs[0].Key, docs[1].Key)
	}
	if other, err := store.List(ctx, "other"); err != nil || len(other) != 0 {
		t.Fatalf("expected empty collection, got %d %v", len(other), err)
	}
	if ok, err := store.Delete(ctx, "pantry", "apple"); err != nil || !ok {
		t.Fatalf("expected delete true")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStore_RejectsInvalidKeys(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.Set(ctx, "pantry", "", core.Record{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
	if _, _, err := store.Get(ctx, "", "apple"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection error, got %v", err)
	}
	if _, err := store.Delete(ctx, "a/b", "apple"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection error, got %v", err)
	}
	if _, err := store.List(ctx, ""); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection error, got %v", err)
	}
}

func TestStore_GetReturnsIsolatedCopies(t *testing.T) {
	store := NewWithCodec(core.MsgpackCodec{})
	ctx := context.Background()
	rec := core.Record{"unit": "kg"}
	if err := store.Set(ctx, "pantry", "kale", rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec["unit"] = "g"
	got, _, err := store.Get(ctx, "pantry", "kale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["unit"] != "kg" {
		t.Fatalf("expected stored value to be isolated from caller map, got %v", got["unit"])
	}
	got["unit"] = "mg"
	again, _, _ := store.Get(ctx, "pantry", "kale")
	if again["unit"] != "kg" {
		t.Fatalf("expected returned map to be a copy")
	}
}

type brokenCodec struct{ core.JSONCodec }

func (brokenCodec) Marshal(core.Record) ([]byte, error) { return nil, errors.New("marshal") }

func TestStore_CodecErrors(t *testing.T) {
	store := NewWithCodec(brokenCodec{})
	if err := store.Set(context.Background(), "pantry", "x", core.Record{}); err == nil {
		t.Fatalf("expected marshal error")
	}
	store = NewWithCodec(nil)
	store.colls["pantry"] = map[string][]byte{"bad": []byte("{")}
	if _, _, err := store.Get(context.Background(), "pantry", "bad"); err == nil {
		t.Fatalf("expected decode error on get")
	}
	if _, err := store.List(context.Background(), "pantry"); err == nil {
		t.Fatalf("expected decode error on list")
	}
}
