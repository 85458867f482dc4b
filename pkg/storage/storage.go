// Package storage abstracts the physical file operations behind the
// moderation storage tiers. Keys are slash-separated paths of the form
// <tier>/<tenant>/<filename> regardless of backend.
package storage

import (
	"context"
	"time"
)

// ObjectInfo describes one stored file.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend is the filesystem-like abstraction the tier mover operates on.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, fromKey, toKey string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
