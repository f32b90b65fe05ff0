package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
	"cfs-go/internal/database"
	"cfs-go/internal/encryption"
	"cfs-go/internal/storage"
)

// snapshotPrefix holds encrypted database snapshots. It sits beside the
// user namespaces, which all match storage.user_folder_pattern.
const snapshotPrefix = "_system/db/"

const snapshotSuffix = ".db.age"

// Snapshot is one encrypted database snapshot in the object store. Version
// is the highest journal ID the snapshot contains.
type Snapshot struct {
	Key     string
	Version int64
	Size    int64
}

type snapshotRef struct {
	key     string
	version int64
}

// snapshotKey names a snapshot <timestamp>-<version>.db.age so keys sort
// by time.
func snapshotKey(at time.Time, version int64) string {
	return fmt.Sprintf("%s%s-%d%s", snapshotPrefix, at.UTC().Format("20060102T150405Z"), version, snapshotSuffix)
}

// parseSnapshotKey extracts the version from a snapshot key.
func parseSnapshotKey(key string) (int64, bool) {
	name, ok := strings.CutPrefix(key, snapshotPrefix)
	if !ok {
		return 0, false
	}
	name, ok = strings.CutSuffix(name, snapshotSuffix)
	if !ok {
		return 0, false
	}
	i := strings.LastIndexByte(name, '-')
	if i < 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(name[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// listSnapshots returns the snapshots in the store, oldest first.
func listSnapshots(ctx context.Context, store cfs.ObjectStore) ([]Snapshot, error) {
	objs, err := store.ListAll(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var out []Snapshot
	for _, obj := range objs {
		if obj.IsDir {
			continue
		}
		if v, ok := parseSnapshotKey(obj.Key); ok {
			out = append(out, Snapshot{Key: obj.Key, Version: v, Size: obj.Size})
		}
	}
	return out, nil
}

func latestSnapshot(ctx context.Context, store cfs.ObjectStore) (*snapshotRef, error) {
	snaps, err := listSnapshots(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	last := snaps[len(snaps)-1]
	return &snapshotRef{key: last.Key, version: last.Version}, nil
}

// ListSnapshots returns the database snapshots in the object store.
func (a *CFSApp) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	return listSnapshots(ctx, a.store)
}

// BackupDatabase writes a consistent copy of the metadata database,
// encrypts it and stores it in the object store. Returns the snapshot key.
func (a *CFSApp) BackupDatabase(ctx context.Context) (string, error) {
	if !a.encryptor.IsConfigured() {
		return "", fmt.Errorf("encryption keys not configured: run cfs keys init")
	}
	version, err := a.db.MaxOperationID(ctx)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "cfs-db-backup-")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	defer os.RemoveAll(dir)

	// VACUUM INTO refuses an existing target, so only the directory is created.
	plainPath := filepath.Join(dir, database.FileName)
	if err := a.db.BackupTo(plainPath); err != nil {
		return "", err
	}

	encPath := plainPath + ".age"
	if err := encryptFile(a.encryptor, plainPath, encPath); err != nil {
		return "", err
	}

	f, err := os.Open(encPath)
	if err != nil {
		return "", fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat encrypted snapshot: %w", err)
	}

	key := snapshotKey(time.Now(), version)
	if err := a.store.Put(ctx, key, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	a.logger.Info("database snapshot stored", "key", key, "version", version, "bytes", info.Size())
	return key, nil
}

func encryptFile(enc cfs.Encryptor, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening db backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting db backup: %w", err)
	}
	return out.Close()
}

// RestoreDatabase replaces the local SQLite database with a snapshot from
// the object store. An empty key selects the newest snapshot. The server
// must not be running. Returns the restored key.
func RestoreDatabase(ctx context.Context, cfg *config.Config, key, passphrase string) (string, error) {
	if cfg.Database.Type != "sqlite" {
		return "", fmt.Errorf("restore requires a sqlite database, not %q", cfg.Database.Type)
	}

	store, err := storage.NewObjectStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return "", fmt.Errorf("creating object store: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}

	if key == "" {
		latest, err := latestSnapshot(ctx, store)
		if err != nil {
			return "", err
		}
		if latest == nil {
			return "", fmt.Errorf("no snapshots under %s", snapshotPrefix)
		}
		key = latest.key
	}

	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return "", fmt.Errorf("unlocking private key: %w", err)
	}

	if err := os.MkdirAll(cfg.Database.DataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	target := filepath.Join(cfg.Database.DataDir, database.FileName)
	tmp := target + ".restore"
	if err := downloadDecrypted(ctx, store, dc, key, tmp); err != nil {
		os.Remove(tmp)
		return "", err
	}

	// Refuse a snapshot that is not a usable database before touching the
	// live file.
	check, err := database.NewSQLiteDatabase(tmp, nil)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("opening restored snapshot: %w", err)
	}
	err = check.CheckMigrations()
	check.Close()
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("restored snapshot schema: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(target + suffix); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("removing %s: %w", target+suffix, err)
		}
		os.Remove(tmp + suffix)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("replacing database: %w", err)
	}
	return key, nil
}

func downloadDecrypted(ctx context.Context, store cfs.ObjectStore, dc cfs.DecryptionContext, key, dst string) error {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("opening snapshot %s: %w", key, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating restore file: %w", err)
	}
	if err := dc.Decrypt(rc, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return out.Close()
}

// InitKeys generates the snapshot key pair. Existing keys are never replaced.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc.IsConfigured() {
		return fmt.Errorf("encryption keys already exist at %s", cfg.Encryption.PublicKeyPath)
	}
	return enc.Setup(passphrase)
}
