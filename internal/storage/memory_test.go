package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemoryStore_FailKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("test")
	for _, key := range []string{"u/d/a", "u/d/b", "u/d/c"} {
		if err := s.Put(ctx, key, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	errA := errors.New("boom a")
	errC := errors.New("boom c")
	s.FailKey("u/d/a", errA)
	s.FailKey("u/d/c", errC)

	err := s.DeletePrefix(ctx, "u/d")
	if err == nil {
		t.Fatal("DeletePrefix() expected error, got nil")
	}
	// Every failing key is reported, not just the first
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("DeletePrefix() error = %v, want both failures", err)
	}

	// Keys that did not fail are gone
	if ok, _ := s.Exists(ctx, "u/d/b"); ok {
		t.Error("u/d/b should have been deleted")
	}
	if ok, _ := s.Exists(ctx, "u/d/a"); !ok {
		t.Error("u/d/a should remain after a failed delete")
	}
}

func TestMemoryStore_CopyPrefixFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("test")
	if err := s.Put(ctx, "u/src/a", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	boom := errors.New("boom")
	s.FailKey("u/src/a", boom)

	if err := s.CopyPrefix(ctx, "u/src", "u/dst"); !errors.Is(err, boom) {
		t.Errorf("CopyPrefix() error = %v, want %v", err, boom)
	}
}
