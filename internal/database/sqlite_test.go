package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", fixedClock{time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestUser(t *testing.T, db *SQLiteDatabase, username string) *model.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func saveAll(t *testing.T, db *SQLiteDatabase, owner int64, rows map[string]model.ResourceType) {
	t.Helper()
	var rs []*model.Resource
	for p, typ := range rows {
		rs = append(rs, &model.Resource{OwnerID: owner, Name: filepath.Base(p), Path: p, Type: typ})
	}
	if _, err := db.SaveResources(context.Background(), rs); err != nil {
		t.Fatalf("SaveResources() error = %v", err)
	}
}

func TestSQLiteDatabase_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and finds user", func(t *testing.T) {
		db := newTestDB(t)

		created := newTestUser(t, db, "alice")
		if created.ID == 0 {
			t.Fatal("CreateUser() returned zero ID")
		}

		byName, err := db.FindUserByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindUserByUsername() error = %v", err)
		}
		if byName == nil || byName.ID != created.ID {
			t.Fatalf("FindUserByUsername() = %v, want ID %d", byName, created.ID)
		}

		byID, err := db.FindUserByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if byID == nil || byID.Username != "alice" {
			t.Errorf("FindUserByID() = %v, want alice", byID)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		db := newTestDB(t)
		newTestUser(t, db, "alice")

		_, err := db.CreateUser(ctx, "alice", "other")
		if !errors.Is(err, cfs.ErrAlreadyExists) {
			t.Errorf("CreateUser() error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("returns nil when user not found", func(t *testing.T) {
		db := newTestDB(t)

		u, err := db.FindUserByUsername(ctx, "nobody")
		if err != nil {
			t.Fatalf("FindUserByUsername() error = %v", err)
		}
		if u != nil {
			t.Errorf("FindUserByUsername() = %v, want nil", u)
		}
	})
}

func TestSQLiteDatabase_SaveResource(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "alice")

	saved, err := db.SaveResource(ctx, &model.Resource{
		OwnerID: u.ID, Name: "a.txt", Path: "user-1-files/a.txt", Size: 10, Type: model.ResourceFile,
	})
	if err != nil {
		t.Fatalf("SaveResource() error = %v", err)
	}

	// Saving the same path again updates the size in place
	again, err := db.SaveResource(ctx, &model.Resource{
		OwnerID: u.ID, Name: "a.txt", Path: "user-1-files/a.txt", Size: 20, Type: model.ResourceFile,
	})
	if err != nil {
		t.Fatalf("SaveResource() error = %v", err)
	}
	if again.ID != saved.ID {
		t.Errorf("ID = %d, want %d", again.ID, saved.ID)
	}
	if again.Size != 20 {
		t.Errorf("Size = %d, want 20", again.Size)
	}

	found, err := db.FindResourceByPath(ctx, u.ID, "user-1-files/a.txt")
	if err != nil {
		t.Fatalf("FindResourceByPath() error = %v", err)
	}
	if found == nil || found.Type != model.ResourceFile || found.Size != 20 {
		t.Errorf("FindResourceByPath() = %+v", found)
	}
}

func TestSQLiteDatabase_FindResourcesByPaths(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "alice")
	saveAll(t, db, u.ID, map[string]model.ResourceType{
		"r/a":     model.ResourceDirectory,
		"r/a/b":   model.ResourceDirectory,
		"r/a/b/c": model.ResourceFile,
	})

	got, err := db.FindResourcesByPaths(ctx, u.ID, []string{"r/a", "r/a/b", "r/missing"})
	if err != nil {
		t.Fatalf("FindResourcesByPaths() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got["r/a/b"] == nil || !got["r/a/b"].IsDir() {
		t.Errorf("r/a/b = %+v, want directory", got["r/a/b"])
	}
	if _, ok := got["r/missing"]; ok {
		t.Error("missing path should be absent from the map")
	}

	empty, err := db.FindResourcesByPaths(ctx, u.ID, nil)
	if err != nil {
		t.Fatalf("FindResourcesByPaths(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}

func TestSQLiteDatabase_DeleteResource(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "alice")
	saveAll(t, db, u.ID, map[string]model.ResourceType{
		"r/docs":        model.ResourceDirectory,
		"r/docs/a.txt":  model.ResourceFile,
		"r/docs/sub":    model.ResourceDirectory,
		"r/docs/sub/b":  model.ResourceFile,
		"r/docsarchive": model.ResourceDirectory,
	})

	n, err := db.DeleteResource(ctx, u.ID, "r/docs")
	if err != nil {
		t.Fatalf("DeleteResource() error = %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}

	// A sibling sharing the name prefix survives
	sibling, err := db.FindResourceByPath(ctx, u.ID, "r/docsarchive")
	if err != nil {
		t.Fatalf("FindResourceByPath() error = %v", err)
	}
	if sibling == nil {
		t.Error("r/docsarchive was deleted")
	}
}

func TestSQLiteDatabase_MoveResources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "alice")
	saveAll(t, db, u.ID, map[string]model.ResourceType{
		"r/docs":                model.ResourceDirectory,
		"r/docs/a.txt":          model.ResourceFile,
		"r/docs/sub":            model.ResourceDirectory,
		"r/docs/sub/b":          model.ResourceFile,
		"r/archive":             model.ResourceDirectory,
		"r/archive/docs2/stale": model.ResourceFile, // left by an interrupted move
	})

	n, err := db.MoveResources(ctx, u.ID, "r/docs", "r/archive/docs2")
	if err != nil {
		t.Fatalf("MoveResources() error = %v", err)
	}
	if n != 4 {
		t.Errorf("moved = %d, want 4", n)
	}

	rows, err := db.ListResources(ctx, u.ID, "r/archive")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	want := []string{"r/archive", "r/archive/docs2", "r/archive/docs2/a.txt", "r/archive/docs2/sub", "r/archive/docs2/sub/b"}
	if len(rows) != len(want) {
		t.Fatalf("len = %d, want %d", len(rows), len(want))
	}
	for i, r := range rows {
		if r.Path != want[i] {
			t.Errorf("rows[%d].Path = %q, want %q", i, r.Path, want[i])
		}
	}
	if rows[1].Name != "docs2" {
		t.Errorf("moved folder Name = %q, want docs2", rows[1].Name)
	}
	if rows[2].Name != "a.txt" {
		t.Errorf("descendant Name = %q, want a.txt", rows[2].Name)
	}

	old, err := db.ListResources(ctx, u.ID, "r/docs")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(old) != 0 {
		t.Errorf("%d rows left under source", len(old))
	}
}

func TestSQLiteDatabase_ReplaceResources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := newTestUser(t, db, "alice")
	saveAll(t, db, u.ID, map[string]model.ResourceType{
		"r/docs":       model.ResourceDirectory,
		"r/docs/ghost": model.ResourceFile,
	})

	err := db.ReplaceResources(ctx, u.ID, "r/docs", []*model.Resource{
		{OwnerID: u.ID, Name: "docs", Path: "r/docs", Type: model.ResourceDirectory},
		{OwnerID: u.ID, Name: "real", Path: "r/docs/real", Size: 3, Type: model.ResourceFile},
	})
	if err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	rows, err := db.ListResources(ctx, u.ID, "r/docs")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(rows) != 2 || rows[1].Path != "r/docs/real" {
		t.Errorf("rows = %+v", rows)
	}

	t.Run("rejects rows outside the subtree", func(t *testing.T) {
		err := db.ReplaceResources(ctx, u.ID, "r/docs", []*model.Resource{
			{OwnerID: u.ID, Name: "x", Path: "r/elsewhere/x", Type: model.ResourceFile},
		})
		if err == nil {
			t.Fatal("ReplaceResources() expected error, got nil")
		}
		// The failed transaction left the previous rows alone
		rows, _ := db.ListResources(ctx, u.ID, "r/docs")
		if len(rows) != 2 {
			t.Errorf("len = %d, want 2 after rollback", len(rows))
		}
	})
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.CreateOperation(ctx, "upload-files", 1, "r/docs", "")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if first.Status != model.OperationPending {
		t.Errorf("Status = %q, want pending", first.Status)
	}
	second, err := db.CreateOperation(ctx, "move-resource", 1, "r/a", "r/b")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	if err := db.FinishOperation(ctx, first.ID, model.OperationSuccess); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	unfinished, err := db.ListUnfinishedOperations(ctx)
	if err != nil {
		t.Fatalf("ListUnfinishedOperations() error = %v", err)
	}
	if len(unfinished) != 1 || unfinished[0].ID != second.ID {
		t.Fatalf("unfinished = %+v, want only %d", unfinished, second.ID)
	}

	all, err := db.ListOperations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// Newest first
	if all[0].ID != second.ID {
		t.Errorf("all[0].ID = %d, want %d", all[0].ID, second.ID)
	}
	if all[1].FinishedAt == nil {
		t.Error("finished operation has nil FinishedAt")
	}

	maxID, err := db.MaxOperationID(ctx)
	if err != nil {
		t.Fatalf("MaxOperationID() error = %v", err)
	}
	if maxID != second.ID {
		t.Errorf("MaxOperationID() = %d, want %d", maxID, second.ID)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	newTestUser(t, db, "alice")

	dest := filepath.Join(t.TempDir(), "copy.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	copyDB, err := NewSQLiteDatabase(dest, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer copyDB.Close()

	u, err := copyDB.FindUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername() error = %v", err)
	}
	if u == nil {
		t.Error("backup does not contain user")
	}
}
