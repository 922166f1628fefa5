package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"pantry/internal/docstore/core"
	"pantry/internal/infra/docstore/postgres/testutil"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestNewStoreEnsuresDocumentsTable(t *testing.T) {
	store, conn := newStubStore(t)
	if store.Driver() != core.DriverPostgres {
		t.Fatalf("expected postgres driver")
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS DOCUMENTS") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected documents DDL, got execs: %v", conn.Execs)
	}
}

func TestNewStoreFailures(t *testing.T) {
	ctx := context.Background()

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(ctx, "postgres://example"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
	restore()

	db, conn = testutil.NewStubDB()
	conn.FailExec = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "ensure documents table") {
		t.Fatalf("expected DDL error, got %v", err)
	}
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t)

	if _, ok, err := store.Get(ctx, "pantry", "apple"); err != nil || ok {
		t.Fatalf("expected missing get, got %v %v", ok, err)
	}
	if err := store.Set(ctx, "pantry", "pear", core.Record{"quantity": 1, "unit": "g"}); err != nil {
		t.Fatalf("set pear: %v", err)
	}
	if err := store.Set(ctx, "pantry", "apple", core.Record{"quantity": 2, "weight": 1.5}); err != nil {
		t.Fatalf("set apple: %v", err)
	}
	if err := store.Set(ctx, "pantry", "apple", core.Record{"quantity": 5, "weight": 1.6}); err != nil {
		t.Fatalf("overwrite apple: %v", err)
	}
	if len(conn.Docs["pantry"]) != 2 {
		t.Fatalf("expected two stored rows, got %d", len(conn.Docs["pantry"]))
	}

	rec, ok, err := store.Get(ctx, "pantry", "apple")
	if err != nil || !ok {
		t.Fatalf("get apple: %v %v", ok, err)
	}
	if rec["quantity"] != json.Number("5") || rec["weight"] != json.Number("1.6") {
		t.Fatalf("unexpected record %#v", rec)
	}

	docs, err := store.List(ctx, "pantry")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].Key != "apple" || docs[1].Key != "pear" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if other, err := store.List(ctx, "other"); err != nil || len(other) != 0 {
		t.Fatalf("expected empty collection, got %d %v", len(other), err)
	}

	if ok, err := store.Delete(ctx, "pantry", "apple"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "pantry", "apple"); err != nil || ok {
		t.Fatalf("expected missing delete, got %v %v", ok, err)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t)

	if err := store.Set(ctx, "pantry", "", core.Record{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if _, _, err := store.Get(ctx, "", "apple"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection, got %v", err)
	}
	if _, err := store.Delete(ctx, "a/b", "apple"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection, got %v", err)
	}
	if _, err := store.List(ctx, ".."); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid collection, got %v", err)
	}

	conn.Docs["pantry"] = map[string][]byte{"broken": []byte("{not json")}
	if _, _, err := store.Get(ctx, "pantry", "broken"); err == nil {
		t.Fatalf("expected decode error on get")
	}
	if _, err := store.List(ctx, "pantry"); err == nil {
		t.Fatalf("expected decode error on list")
	}
	delete(conn.Docs, "pantry")

	conn.RowsErr = errors.New("cursor lost")
	if err := store.Set(ctx, "pantry", "kale", core.Record{"quantity": 1}); err != nil {
		t.Fatalf("set kale: %v", err)
	}
	if _, err := store.List(ctx, "pantry"); err == nil || !strings.Contains(err.Error(), "iterate") {
		t.Fatalf("expected iteration error, got %v", err)
	}
	conn.RowsErr = nil

	conn.FailQuery = true
	if _, _, err := store.Get(ctx, "pantry", "kale"); err == nil {
		t.Fatalf("expected query failure on get")
	}
	if _, err := store.List(ctx, "pantry"); err == nil {
		t.Fatalf("expected query failure on list")
	}
	conn.FailQuery = false

	conn.FailExec = true
	if err := store.Set(ctx, "pantry", "kale", core.Record{"quantity": 2}); err == nil {
		t.Fatalf("expected exec failure on set")
	}
	if _, err := store.Delete(ctx, "pantry", "kale"); err == nil {
		t.Fatalf("expected exec failure on delete")
	}
}
