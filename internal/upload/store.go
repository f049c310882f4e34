// Package upload validates, names and stores recipe images.
//
// The Manager owns the rules (extension allow-list, sanitised names, the
// staging/commit dance); a Store only moves bytes around. Two stores exist:
// a local directory (FSStore) and an S3-compatible bucket (MinIOStore).
package upload

import (
	"context"
	"io"
	"time"
)

// Object describes one stored file.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
	// Partial marks a write that never completed. Such objects are only
	// visible to Sweep.
	Partial bool
}

// Store is a flat key/value blob store. Keys use "/" as separator; the
// Manager only ever uses one level ("staging/<name>").
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Move renames src to dst, replacing dst if it exists.
	Move(ctx context.Context, src, dst string) error
	// Remove deletes key. A missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Open returns apperror.ErrNotFound for a missing key.
	Open(ctx context.Context, key string) (io.ReadSeekCloser, Object, error)
	List(ctx context.Context) ([]Object, error)
}
