package kv

import (
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "stickies-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM kv`).Scan(&count); err != nil {
		t.Fatalf("kv table missing: %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	db := testDB(t)
	if err := db.Set(KeyNotes, []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := db.Get(KeyNotes)
	if err != nil || !ok {
		t.Fatalf("Get: %v ok=%v", err, ok)
	}
	if string(v) != "[]" {
		t.Errorf("value = %q", v)
	}
	if _, ok, _ := db.UpdatedAt(KeyNotes); !ok {
		t.Error("updated_at missing")
	}
}

func TestSetOverwrites(t *testing.T) {
	db := testDB(t)
	_ = db.Set("k", []byte("one"))
	_ = db.Set("k", []byte("two"))
	v, _, _ := db.Get("k")
	if string(v) != "two" {
		t.Errorf("value = %q, want two", v)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	v, ok, err := db.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || v != nil {
		t.Errorf("expected absent key, got %q", v)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	db := testDB(t)
	_ = db.Set("k", []byte("v"))
	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, ok, _ := db.Get("k"); ok {
		t.Error("key still present")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Set(KeyBackupInterval, []byte("1800"))
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	v, ok, _ := db2.Get(KeyBackupInterval)
	if !ok || string(v) != "1800" {
		t.Errorf("value after reopen = %q ok=%v", v, ok)
	}
}
