package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempFolder(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempFolder(t)
	content := []byte(`[{"id":"x"}]`)
	if err := s.Write("backup_a.stickies", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("backup_a.stickies")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempFolder(t)
	_ = s.Write("del.stickies", []byte("bye"))
	if err := s.Delete("del.stickies"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.stickies"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete("del.stickies"); err == nil {
		t.Error("expected error deleting missing file")
	}
}

func TestList(t *testing.T) {
	s := tempFolder(t)
	_ = s.Write("backup_1.stickies", []byte("a"))
	_ = s.Write("backup_2.stickies", []byte("bb"))
	_ = s.Write("Stickies_Export_1.stickies", []byte("c"))
	_ = s.Write("backup_3.txt", []byte("d"))
	_ = os.Mkdir(filepath.Join(s.Root(), "backup_dir.stickies"), 0o755)

	items, err := s.List("backup_", ".stickies")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Name == "backup_2.stickies" && it.Size != 2 {
			t.Errorf("size = %d, want 2", it.Size)
		}
	}
}

func TestStatAndModTime(t *testing.T) {
	s := tempFolder(t)
	before, err := s.ModTime()
	if err != nil {
		t.Fatalf("ModTime: %v", err)
	}
	old := before.Add(-time.Hour)
	_ = os.Chtimes(s.Root(), old, old)

	_ = s.Write("x.stickies", []byte("xyz"))
	info, err := s.Stat("x.stickies")
	if err != nil || info.Size != 3 {
		t.Fatalf("Stat = %+v, %v", info, err)
	}
	after, _ := s.ModTime()
	if !after.After(old) {
		t.Error("folder mtime did not advance after write")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempFolder(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.stickies",
		"/etc/shadow",
		"sub/inner.stickies",
		"",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempFolder(t)
	_ = s.Write("atomic.stickies", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.stickies", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.stickies")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(p, nil, 0o644)
	if _, err := NewFS(p); err == nil {
		t.Error("expected error when root is a file")
	}
}
