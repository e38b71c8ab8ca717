package blobstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFSStore(dir)

	if err := store.Store("hello.txt", []byte("Hello"), 0o644); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err := store.Load("hello.txt")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	store := NewFSStore(t.TempDir())

	_, err := store.Load("nope.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStoreCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	store := NewFSStore(dir)

	if err := store.Store("a/b/c.txt", []byte("data"), 0o644); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "b", "c.txt")); err != nil {
		t.Fatalf("expected nested file to exist: %v", err)
	}
}

func TestResolvePreventsPathEscape(t *testing.T) {
	dir := t.TempDir()
	store := &fsStore{root: dir}

	resolved := store.resolve("../../etc/passwd")
	if filepath.Dir(resolved) != dir && !isWithin(dir, resolved) {
		t.Fatalf("resolved path %q escaped root %q", resolved, dir)
	}
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasDotDotPrefix(rel)
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}
