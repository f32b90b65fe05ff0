package cfs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"cfs-go/internal/model"
)

// Download is a byte stream handed to a client. Size is -1 when unknown
// in advance (archives).
type Download struct {
	Name string
	Size int64
	Body io.ReadCloser
}

// DownloadFile streams one file.
func (s *ResourceService) DownloadFile(ctx context.Context, user *model.User, path string) (*Download, error) {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return nil, fmt.Errorf("%w: root is a directory", ErrFileNotFound)
	}

	ok, err := s.store.Exists(ctx, abs)
	if err != nil {
		return nil, failed("checking file", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}
	size, err := s.store.StatSize(ctx, abs)
	if err != nil {
		return nil, failed("reading file size", err)
	}
	body, err := s.store.Open(ctx, abs)
	if err != nil {
		return nil, failed("opening file", err)
	}
	return &Download{Name: LeafOf(abs), Size: size, Body: body}, nil
}

// DownloadFolderZip streams a zip archive of a directory. Entry names are
// relative to the directory. The archive is written by a goroutine while
// the caller reads; a failure mid-stream surfaces as a read error.
func (s *ResourceService) DownloadFolderZip(ctx context.Context, user *model.User, path string) (*Download, error) {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return nil, err
	}
	if rel != "" {
		ok, err := s.store.PrefixExists(ctx, abs)
		if err != nil {
			return nil, failed("checking directory", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, rel)
		}
	}

	prefix := abs + Separator
	items, err := s.store.ListAll(ctx, prefix)
	if err != nil {
		return nil, failed("listing directory", err)
	}

	name := LeafOf(abs)
	if rel == "" {
		name = "files"
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.writeZip(ctx, pw, prefix, items))
	}()

	s.logger.Debug("folder archive started", "user", user.ID, "path", abs, "entries", len(items))
	return &Download{Name: name + ".zip", Size: -1, Body: pr}, nil
}

func (s *ResourceService) writeZip(ctx context.Context, w io.Writer, prefix string, items []model.ObjectInfo) error {
	zw := zip.NewWriter(w)
	for _, item := range items {
		entry := strings.TrimPrefix(item.Key, prefix)
		if entry == "" {
			continue
		}
		if item.IsDir {
			if _, err := zw.Create(strings.TrimSuffix(entry, Separator) + Separator); err != nil {
				return fmt.Errorf("adding %s: %w", entry, err)
			}
			continue
		}
		if err := s.addZipEntry(ctx, zw, entry, item.Key); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

func (s *ResourceService) addZipEntry(ctx context.Context, zw *zip.Writer, entry, key string) error {
	body, err := s.store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("opening %s: %w", key, err)
	}
	defer body.Close()

	fw, err := zw.Create(entry)
	if err != nil {
		return fmt.Errorf("adding %s: %w", entry, err)
	}
	if _, err := io.Copy(fw, body); err != nil {
		return fmt.Errorf("writing %s: %w", entry, err)
	}
	return nil
}
