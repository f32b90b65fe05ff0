package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFileSystemStore(t *testing.T) (*FileSystemStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewFileSystemStore("test", root, 2)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return s, root
}

func TestFileSystemStore_Layout(t *testing.T) {
	ctx := context.Background()
	s, root := newTestFileSystemStore(t)

	if err := s.Put(ctx, "user-1-files/docs/a.txt", strings.NewReader("abc"), 3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "user-1-files", "docs", "a.txt"))
	if err != nil {
		t.Fatalf("object not written under root: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("content = %q, want abc", data)
	}

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Join(root, ".tmp"))
	if err != nil {
		t.Fatalf("ReadDir(.tmp) error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf(".tmp has %d entries, want 0", len(entries))
	}
}

func TestFileSystemStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileSystemStore(t)

	for _, key := range []string{"../escape", "u/../../escape", "/etc/passwd"} {
		if err := s.Put(ctx, key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) expected error, got nil", key)
		}
	}
}

func TestFileSystemStore_HidesTempDir(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileSystemStore(t)
	if err := s.PutEmpty(ctx, "user-1-files/"); err != nil {
		t.Fatalf("PutEmpty() error = %v", err)
	}

	items, err := s.ListChildren(ctx, "")
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(items) != 1 || items[0].Key != "user-1-files/" {
		t.Errorf("ListChildren(root) = %v, want only user-1-files/", items)
	}

	all, err := s.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	for _, item := range all {
		if strings.HasPrefix(item.Key, ".tmp") {
			t.Errorf("ListAll() leaked %s", item.Key)
		}
	}
}

func TestFileSystemStore_ContextCanceled(t *testing.T) {
	s, _ := newTestFileSystemStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "u/a", strings.NewReader("abc"), 3); err == nil {
		t.Error("Put() with canceled context expected error, got nil")
	}
	if ok, _ := s.Exists(context.Background(), "u/a"); ok {
		t.Error("canceled Put left an object behind")
	}
}

func TestFileSystemStore_KeyBelowFile(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileSystemStore(t)
	if err := s.Put(ctx, "u/a.txt", strings.NewReader("hello"), 5); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ok, err := s.Exists(ctx, "u/a.txt/b.txt")
	if err != nil || ok {
		t.Errorf("Exists(u/a.txt/b.txt) = %v, %v; want false, nil", ok, err)
	}
	ok, err = s.PrefixExists(ctx, "u/a.txt/sub")
	if err != nil || ok {
		t.Errorf("PrefixExists(u/a.txt/sub) = %v, %v; want false, nil", ok, err)
	}
}
