package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mindmap/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte(`{"title":"Plan","nodes":[],"edges":[]}`)
	if err := s.Write("maps/m1.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("maps/m1.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDeleteAndExists(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("maps/del.json", []byte("{}"))
	if ok, err := s.Exists("maps/del.json"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := s.Delete("maps/del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists("maps/del.json"); ok {
		t.Error("file still exists after delete")
	}
	if _, err := s.Read("maps/del.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestExistsOnDirectory(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("maps/a.json", []byte("{}"))
	if ok, _ := s.Exists("maps"); ok {
		t.Error("a directory is not a file")
	}
}

func TestListFiltersByExtension(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("maps/a.json", []byte("{}"))
	_ = s.Write("maps/b.json", []byte("{}"))
	_ = s.Write("maps/notes.txt", []byte("x"))
	_ = s.Write("projects/p.md", []byte("# p"))

	items, err := s.List(MapsDir, ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if filepath.Dir(it.Path) != MapsDir || it.Checksum == "" {
			t.Errorf("item = %+v", it)
		}
	}
}

func TestListSkipsSubdirectoriesAndHidden(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("maps/a.json", []byte("{}"))
	_ = s.Write("maps/archive/old.json", []byte("{}"))
	_ = s.Write("maps/.draft.json", []byte("{}"))

	items, err := s.List(MapsDir, ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "maps/a.json" {
		t.Errorf("items = %+v", items)
	}
}

func TestWriteFileMode(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("projects/p.md", []byte("# p")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(s.Root(), "projects", "p.md"))
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != fileMode {
		t.Errorf("mode = %v, want %v", got, os.FileMode(fileMode))
	}
}

func TestListMissingDir(t *testing.T) {
	s := tempVault(t)
	items, err := s.List(ProjectsDir, ".md")
	if err != nil || len(items) != 0 {
		t.Errorf("List = %v, %v", items, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Read(%q) = %v, want invalid", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("maps/atomic.json", []byte(`{"v":1}`))
	if err := s.Write("maps/atomic.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("maps/atomic.json")
	if string(got) != `{"v":2}` {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, MapsDir, ".mindmap-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/mindmap-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "mindmap-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestMapID(t *testing.T) {
	cases := map[string]string{
		"maps/abc.json":     "abc",
		"maps/.tmp.json":    "",
		"maps/sub/abc.json": "",
		"projects/abc.json": "",
		"maps/abc.md":       "",
		MapPath("x-1"):      "x-1",
	}
	for in, want := range cases {
		got, ok := MapID(in)
		if got != want || ok != (want != "") {
			t.Errorf("MapID(%q) = %q, %v", in, got, ok)
		}
	}
}
