package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

// FileSystemStore is a filesystem-based implementation of the ObjectStore
// interface. Object keys map onto paths below the root; a directory marker
// ("a/b/") is a directory on disk:
//
//	<root>/
//	  .tmp/                 (in-flight writes)
//	  user-1-files/
//	    docs/
//	      report.pdf
//
// An empty directory counts as a marker. Directories created implicitly by
// a nested Put also count, which makes a prefix outlive its last file.
type FileSystemStore struct {
	name   string
	root   string
	tmpDir string
	fanout int
}

// NewFileSystemStore creates a new filesystem store rooted at the given path.
func NewFileSystemStore(name, root string, fanout int) (*FileSystemStore, error) {
	tmpDir := filepath.Join(root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &FileSystemStore{name: name, root: root, tmpDir: tmpDir, fanout: fanout}, nil
}

// resolve maps a key onto a path below the root, rejecting traversal.
func (f *FileSystemStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSuffix(key, "/")))
	sep := string(filepath.Separator)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+sep) {
		return "", fmt.Errorf("key escapes store root: %q", key)
	}
	full := filepath.Join(f.root, clean)
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return "", fmt.Errorf("key escapes store root: %q", key)
	}
	return full, nil
}

func (f *FileSystemStore) Exists(_ context.Context, key string) (bool, error) {
	if strings.HasSuffix(key, "/") {
		return f.isDir(key)
	}
	p, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if missing(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

func (f *FileSystemStore) PrefixExists(_ context.Context, prefix string) (bool, error) {
	return f.isDir(withSlash(prefix))
}

// missing reports whether a stat error means nothing is stored at the path.
// ENOTDIR means an ancestor of the path is a file.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func (f *FileSystemStore) isDir(key string) (bool, error) {
	p, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if missing(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return info.IsDir(), nil
}

// Put writes atomically (temp file + rename).
func (f *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if strings.HasSuffix(key, "/") {
		return f.PutEmpty(ctx, key)
	}
	destPath, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(f.tmpDir, "put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, &contextReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// PutEmpty creates the directory for a marker key, or an empty file.
func (f *FileSystemStore) PutEmpty(ctx context.Context, key string) error {
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	if strings.HasSuffix(key, "/") {
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", key, err)
		}
		return nil
	}
	return f.Put(ctx, key, strings.NewReader(""), 0)
}

func (f *FileSystemStore) Delete(_ context.Context, key string) error {
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every file under prefix, then the emptied
// directories deepest first. Each failure is reported.
func (f *FileSystemStore) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = withSlash(prefix)
	items, err := f.ListAll(ctx, prefix)
	if err != nil {
		return err
	}

	var files, dirs []string
	for _, item := range items {
		if item.IsDir {
			dirs = append(dirs, item.Key)
		} else {
			files = append(files, item.Key)
		}
	}

	var errs []error
	if err := fanOut(ctx, f.fanout, files, f.Delete); err != nil {
		errs = append(errs, err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		p, err := f.resolve(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

func (f *FileSystemStore) Copy(ctx context.Context, src, dst string) error {
	if strings.HasSuffix(src, "/") {
		return f.PutEmpty(ctx, dst)
	}
	srcPath, err := f.resolve(src)
	if err != nil {
		return err
	}
	in, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, cfs.ErrObjectNotFound)
		}
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	return f.Put(ctx, dst, in, info.Size())
}

func (f *FileSystemStore) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	srcPrefix, dstPrefix = withSlash(srcPrefix), withSlash(dstPrefix)
	items, err := f.ListAll(ctx, srcPrefix)
	if err != nil {
		return err
	}
	return fanOut(ctx, f.fanout, items, func(ctx context.Context, item model.ObjectInfo) error {
		if err := f.Copy(ctx, item.Key, dstPrefix+strings.TrimPrefix(item.Key, srcPrefix)); err != nil {
			return fmt.Errorf("copying %s: %w", item.Key, err)
		}
		return nil
	})
}

func (f *FileSystemStore) ListChildren(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	prefix = withSlash(prefix)
	dir, err := f.resolve(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	var out []model.ObjectInfo
	for _, e := range entries {
		if prefix == "" && e.Name() == ".tmp" {
			continue
		}
		if e.IsDir() {
			out = append(out, model.ObjectInfo{Key: prefix + e.Name() + "/", IsDir: true})
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		out = append(out, model.ObjectInfo{Key: prefix + e.Name(), Size: info.Size()})
	}
	return out, nil
}

// ListAll walks the directory for prefix. The directory itself is listed
// as its own marker.
func (f *FileSystemStore) ListAll(_ context.Context, prefix string) ([]model.ObjectInfo, error) {
	prefix = withSlash(prefix)
	dir, err := f.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var out []model.ObjectInfo
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if p == f.tmpDir {
			return fs.SkipDir
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			if key == "." {
				return nil
			}
			out = append(out, model.ObjectInfo{Key: key + "/", IsDir: true})
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, model.ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *FileSystemStore) StatSize(_ context.Context, key string) (int64, error) {
	p, err := f.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if info.IsDir() {
		return 0, nil
	}
	return info.Size(), nil
}

func (f *FileSystemStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return file, nil
}

// ValidateSetup verifies that the store root is an accessible directory.
func (f *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", f.root)
	}
	probe, err := os.CreateTemp(f.tmpDir, "probe-*")
	if err != nil {
		return fmt.Errorf("store root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FileSystemStore implements cfs.ObjectStore interface
var _ cfs.ObjectStore = (*FileSystemStore)(nil)
