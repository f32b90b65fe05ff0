package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"cfs-go/internal/cfs"
	"cfs-go/internal/database/migrations"
	"cfs-go/internal/database/sqlc"
	"cfs-go/internal/model"
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
	clock   cfs.Clock
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the wall clock.
func NewSQLiteDatabase(path string, clock cfs.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, clock)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock cfs.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = cfs.RealClock{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
	}
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		// Connection parameters apply to every pooled connection, unlike
		// a PRAGMA issued once through the pool.
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// User operations

func (s *SQLiteDatabase) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	u, err := s.queries.InsertUser(ctx, sqlc.InsertUserParams{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %s", cfs.ErrAlreadyExists, username)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return toUser(u), nil
}

func (s *SQLiteDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return toUser(u), nil
}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return toUser(u), nil
}

func (s *SQLiteDatabase) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	result := make([]*model.User, len(users))
	for i := range users {
		result[i] = toUser(users[i])
	}
	return result, nil
}

// Resource operations

func (s *SQLiteDatabase) FindResourceByPath(ctx context.Context, ownerID int64, path string) (*model.Resource, error) {
	r, err := s.queries.GetResourceByPath(ctx, sqlc.GetResourceByPathParams{OwnerID: ownerID, Path: path})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding resource by path: %w", err)
	}
	return toResource(r), nil
}

func (s *SQLiteDatabase) FindResourcesByPaths(ctx context.Context, ownerID int64, paths []string) (map[string]*model.Resource, error) {
	result := make(map[string]*model.Resource, len(paths))
	if len(paths) == 0 {
		return result, nil
	}
	rows, err := s.queries.GetResourcesByPaths(ctx, sqlc.GetResourcesByPathsParams{OwnerID: ownerID, Paths: paths})
	if err != nil {
		return nil, fmt.Errorf("finding resources by paths: %w", err)
	}
	for i := range rows {
		result[rows[i].Path] = toResource(rows[i])
	}
	return result, nil
}

func (s *SQLiteDatabase) SaveResource(ctx context.Context, r *model.Resource) (*model.Resource, error) {
	saved, err := upsert(ctx, s.queries, r, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("saving resource %s: %w", r.Path, err)
	}
	return saved, nil
}

// SaveResources upserts every row in a single transaction. Either all rows
// are written or none are.
func (s *SQLiteDatabase) SaveResources(ctx context.Context, rs []*model.Resource) ([]*model.Resource, error) {
	if len(rs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	now := s.clock.Now()

	saved := make([]*model.Resource, 0, len(rs))
	for _, r := range rs {
		row, err := upsert(ctx, qtx, r, now)
		if err != nil {
			return nil, fmt.Errorf("saving resource %s: %w", r.Path, err)
		}
		saved = append(saved, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return saved, nil
}

func (s *SQLiteDatabase) DeleteResource(ctx context.Context, ownerID int64, path string) (int64, error) {
	n, err := s.queries.DeleteResourceTree(ctx, sqlc.DeleteResourceTreeParams{
		OwnerID: ownerID,
		Path:    path,
		Prefix:  path + "/",
	})
	if err != nil {
		return 0, fmt.Errorf("deleting resource %s: %w", path, err)
	}
	return n, nil
}

// MoveResources re-paths the subtree at from to to. Any rows already under
// to are stale leftovers of an interrupted operation and are removed first,
// so the unique (owner, path) constraint cannot fail midway.
func (s *SQLiteDatabase) MoveResources(ctx context.Context, ownerID int64, from, to string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	if _, err := qtx.DeleteResourceTree(ctx, sqlc.DeleteResourceTreeParams{
		OwnerID: ownerID,
		Path:    to,
		Prefix:  to + "/",
	}); err != nil {
		return 0, fmt.Errorf("clearing destination %s: %w", to, err)
	}

	n, err := qtx.MoveResourceTree(ctx, sqlc.MoveResourceTreeParams{
		OwnerID:   ownerID,
		Path:      from,
		Prefix:    from + "/",
		NewPath:   to,
		NewName:   path.Base(to),
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("moving %s to %s: %w", from, to, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

func (s *SQLiteDatabase) ListResources(ctx context.Context, ownerID int64, path string) ([]*model.Resource, error) {
	rows, err := s.queries.ListResourceTree(ctx, sqlc.ListResourceTreeParams{
		OwnerID: ownerID,
		Path:    path,
		Prefix:  path + "/",
	})
	if err != nil {
		return nil, fmt.Errorf("listing resources under %s: %w", path, err)
	}

	result := make([]*model.Resource, len(rows))
	for i := range rows {
		result[i] = toResource(rows[i])
	}
	return result, nil
}

// ReplaceResources deletes the subtree at path and writes rs in its place,
// atomically.
func (s *SQLiteDatabase) ReplaceResources(ctx context.Context, ownerID int64, path string, rs []*model.Resource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	if _, err := qtx.DeleteResourceTree(ctx, sqlc.DeleteResourceTreeParams{
		OwnerID: ownerID,
		Path:    path,
		Prefix:  path + "/",
	}); err != nil {
		return fmt.Errorf("clearing %s: %w", path, err)
	}

	now := s.clock.Now()
	for _, r := range rs {
		if r.OwnerID != ownerID || (r.Path != path && !strings.HasPrefix(r.Path, path+"/")) {
			return fmt.Errorf("resource %s is outside %s", r.Path, path)
		}
		if _, err := upsert(ctx, qtx, r, now); err != nil {
			return fmt.Errorf("saving resource %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, q *sqlc.Queries, r *model.Resource, now time.Time) (*model.Resource, error) {
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	row, err := q.UpsertResource(ctx, sqlc.UpsertResourceParams{
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Path:      r.Path,
		Size:      r.Size,
		Type:      string(r.Type),
		CreatedAt: created,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return toResource(row), nil
}

// Journal operations

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation string, ownerID int64, source, target string) (*model.Operation, error) {
	op, err := s.queries.InsertOperation(ctx, sqlc.InsertOperationParams{
		Operation: operation,
		OwnerID:   ownerID,
		Source:    source,
		Target:    target,
		StartedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return toOperation(op), nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	err := s.queries.UpdateOperationFinished(ctx, sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: s.clock.Now(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	ops, err := s.queries.GetOperations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}

	result := make([]*model.Operation, len(ops))
	for i := range ops {
		result[i] = toOperation(ops[i])
	}
	return result, nil
}

func (s *SQLiteDatabase) ListUnfinishedOperations(ctx context.Context) ([]*model.Operation, error) {
	ops, err := s.queries.GetUnfinishedOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unfinished operations: %w", err)
	}

	result := make([]*model.Operation, len(ops))
	for i := range ops {
		result[i] = toOperation(ops[i])
	}
	return result, nil
}

// MaxOperationID returns the highest journal id, or 0 for an empty journal.
func (s *SQLiteDatabase) MaxOperationID(ctx context.Context) (int64, error) {
	id, err := s.queries.GetMaxOperationID(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations fails unless the schema matches this binary's migrations.
func (s *SQLiteDatabase) CheckMigrations() error {
	_, err := migrations.Check(s.db)
	return err
}

// MigrationStatus reports the schema version against the embedded
// migrations.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// MigrateUp applies pending migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toUser(u sqlc.User) *model.User {
	return &model.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func toResource(r sqlc.Resource) *model.Resource {
	return &model.Resource{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Path:      r.Path,
		Size:      r.Size,
		Type:      model.ResourceType(r.Type),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toOperation(o sqlc.Operation) *model.Operation {
	op := &model.Operation{
		ID:        o.ID,
		Operation: o.Operation,
		OwnerID:   o.OwnerID,
		Source:    o.Source,
		Target:    o.Target,
		Status:    o.Status,
		StartedAt: o.StartedAt,
	}
	if o.FinishedAt.Valid {
		t := o.FinishedAt.Time
		op.FinishedAt = &t
	}
	return op
}

// Compile-time check that SQLiteDatabase implements cfs.Database interface
var _ cfs.Database = (*SQLiteDatabase)(nil)
