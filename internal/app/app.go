package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cfs-go/internal/auth"
	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
	"cfs-go/internal/database"
	"cfs-go/internal/encryption"
	"cfs-go/internal/fs"
	"cfs-go/internal/model"
	"cfs-go/internal/server"
	"cfs-go/internal/staging"
	"cfs-go/internal/storage"
)

// CFSApp is the application layer between the CLI and the resource service.
// It constructs all dependencies from config and exposes the operations the
// commands run. The caller must call Close when done.
type CFSApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	store     cfs.ObjectStore
	spool     *staging.Spool
	encryptor cfs.Encryptor
	resources *cfs.ResourceService
	logger    cfs.Logger
	logFile   *os.File
}

// NewCFSApp creates a fully wired CFSApp from the given config.
// operation identifies the CLI command being run (e.g. "Serve", "Reconcile")
// and tags every log line of this process.
func NewCFSApp(ctx context.Context, cfg *config.Config, operation string) (*CFSApp, error) {
	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &CFSApp{cfg: cfg, logger: logger, logFile: logFile}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *CFSApp) open(ctx context.Context) error {
	cfg := a.cfg

	store, err := storage.NewObjectStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}
	a.store = store

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfs.RealClock{})
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}
	if err := a.checkSnapshotVersion(ctx); err != nil {
		return err
	}

	spool, err := staging.NewSpoolFromConfig(cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating upload spool: %w", err)
	}
	a.spool = spool

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	filter, err := newIgnoreMatcher(cfg.Upload)
	if err != nil {
		return err
	}

	a.resources = cfs.NewResourceService(db, store, a.logger, cfs.RealClock{}, cfs.ServiceOptions{
		UserFolderPattern: cfg.Storage.UserFolderPattern,
		CallTimeout:       cfg.Storage.CallTimeout,
		TransferTimeout:   cfg.Storage.TransferTimeout,
		Filter:            filter,
	})
	return nil
}

// newIgnoreMatcher combines the inline ignore patterns with those of the
// optional ignore file.
func newIgnoreMatcher(cfg config.UploadConfig) (*fs.IgnoreMatcher, error) {
	patterns := append([]string{}, cfg.Ignore...)
	if cfg.IgnoreFile != "" {
		extra, err := fs.ParseIgnoreFile(cfg.IgnoreFile)
		if err != nil {
			return nil, fmt.Errorf("reading ignore file: %w", err)
		}
		patterns = append(patterns, extra...)
	}
	return fs.NewIgnoreMatcher(patterns), nil
}

// checkSnapshotVersion refuses to run against a local database that is
// older than the newest snapshot in the object store.
func (a *CFSApp) checkSnapshotVersion(ctx context.Context) error {
	if a.cfg.Database.Type != "sqlite" {
		return nil
	}
	latest, err := latestSnapshot(ctx, a.store)
	if err != nil {
		return fmt.Errorf("checking snapshot version: %w", err)
	}
	if latest == nil {
		return nil
	}
	localMax, err := a.db.MaxOperationID(ctx)
	if err != nil {
		return fmt.Errorf("checking local metadata version: %w", err)
	}
	if latest.version > localMax {
		return fmt.Errorf("local database is behind snapshot %s (local=%d, snapshot=%d): run cfs db restore",
			latest.key, localMax, latest.version)
	}
	return nil
}

func (a *CFSApp) newAuthService(sessions auth.SessionStore) (*auth.Service, error) {
	return auth.NewService(a.db, sessions, a.resources, a.logger, cfs.RealClock{}, cfs.UUIDGenerator{},
		auth.Options{SessionTTL: a.cfg.Auth.SessionTTL})
}

// Resources returns the wired resource service.
func (a *CFSApp) Resources() *cfs.ResourceService {
	return a.resources
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for at most server.shutdown_timeout.
func (a *CFSApp) Serve(ctx context.Context) error {
	if err := a.store.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating object store: %w", err)
	}
	if a.cfg.Server.ReconcileOnStart {
		report, err := a.resources.Reconcile(ctx)
		if err != nil {
			a.logger.Error("reconcile on start incomplete", "error", err)
		} else {
			a.logger.Info("reconcile on start", "operations", report.Operations, "rows", report.Rows)
		}
	}

	sessions, err := auth.NewSessionStoreFromConfig(a.cfg.Auth, cfs.RealClock{})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer sessions.Close()

	authSvc, err := a.newAuthService(sessions)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	srv := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: server.New(a.resources, authSvc, a.spool, a.logger, cfs.UUIDGenerator{}, server.Options{
			CookieName:           a.cfg.Auth.CookieName,
			SecureCookie:         a.cfg.Auth.SecureCookie,
			MaxConcurrentUploads: a.cfg.Server.MaxConcurrentUploads,
		}),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", srv.Addr, "storage", a.cfg.Storage.Type)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// AddUser creates an account and provisions its storage namespace.
func (a *CFSApp) AddUser(ctx context.Context, username, password string) (*model.User, error) {
	svc, err := a.newAuthService(auth.NewMemorySessionStore(cfs.RealClock{}))
	if err != nil {
		return nil, err
	}
	user, _, err := svc.SignUp(ctx, auth.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account.
func (a *CFSApp) ListUsers(ctx context.Context) ([]*model.User, error) {
	return a.db.ListUsers(ctx)
}

// Reconcile repairs every unfinished journal entry. With a username it
// rebuilds that user's whole namespace from storage instead.
func (a *CFSApp) Reconcile(ctx context.Context, username string) (*cfs.ReconcileReport, error) {
	if username == "" {
		return a.resources.Reconcile(ctx)
	}
	user, err := a.db.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return a.resources.ReconcileUser(ctx, user)
}

// GetHistory returns the most recent journal entries.
func (a *CFSApp) GetHistory(ctx context.Context, limit int) ([]*model.Operation, error) {
	return a.resources.Journal().History(ctx, limit)
}

// Close closes all resources. It is safe on a partially opened app.
func (a *CFSApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
