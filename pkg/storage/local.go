package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalBackend persists files on disk under a base directory.
type LocalBackend struct {
	baseDir string
}

// NewLocalBackend ensures the base directory exists and returns a handle.
func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if baseDir == "" {
		baseDir = "./media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir}, nil
}

// Exists reports whether the key resolves to a regular file.
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(b.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Copy duplicates the source file into the destination key, creating parent
// directories as needed.
func (b *LocalBackend) Copy(ctx context.Context, fromKey, toKey string) error {
	src, err := os.Open(b.resolve(fromKey))
	if err != nil {
		return fmt.Errorf("open %s: %w", fromKey, err)
	}
	defer src.Close() //nolint:errcheck

	dstPath := b.resolve(toKey)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("prepare directory for %s: %w", toKey, err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", toKey, err)
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s to %s: %w", fromKey, toKey, err)
	}
	return nil
}

// Delete removes a stored file if present.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(b.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List walks the prefix and returns every stored object under it.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root := b.resolve(prefix)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var objects []ObjectInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			rel = path
		}
		objects = append(objects, ObjectInfo{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return objects, nil
}

func (b *LocalBackend) resolve(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(key))
}
