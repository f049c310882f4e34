package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/metrics"
)

const (
	// StagingPrefix holds uploads whose recipe row is not committed yet.
	StagingPrefix = "staging/"

	// MaxNameLength matches the image_filename column width.
	MaxNameLength = 100
)

// File is an image as received from a form.
type File struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Staged is an upload written under the staging prefix. Name is the final
// object name the recipe row should reference.
type Staged struct {
	Name string
	key  string
}

// Manager applies the upload rules on top of a Store.
//
// A new image goes through three steps:
//
//	staged, err := m.Stage(ctx, file)   // validated, bytes written to staging/
//	... write the recipe row referencing staged.Name ...
//	err = m.Commit(ctx, staged)         // staging/<name> becomes <name>
//
// If the row write fails the caller calls Discard instead. Whatever a crash
// leaves behind in staging/ is removed by Sweep.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Stage validates the file name and writes the bytes to the staging area.
// A disallowed extension returns apperror.ErrInvalidUpload and writes
// nothing.
func (m *Manager) Stage(ctx context.Context, f File) (*Staged, error) {
	if !Allowed(f.Filename) {
		metrics.UploadsRejected.Inc()
		return nil, apperror.InvalidUpload(f.Filename)
	}

	name := storedName(xid.New().String(), f.Filename, MaxNameLength)
	key := StagingPrefix + name

	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension("." + Extension(name))
	}

	if err := m.store.Put(ctx, key, f.Body, f.Size, contentType); err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}

	m.logger.Debug("upload staged",
		slog.String("original", f.Filename),
		slog.String("name", name),
	)
	return &Staged{Name: name, key: key}, nil
}

// Commit promotes a staged upload to its final name.
func (m *Manager) Commit(ctx context.Context, s *Staged) error {
	if err := m.store.Move(ctx, s.key, s.Name); err != nil {
		return fmt.Errorf("committing upload %s: %w", s.Name, err)
	}
	return nil
}

// Discard drops a staged upload. Failures are logged, not returned: the
// caller is already unwinding another error, and Sweep catches leftovers.
func (m *Manager) Discard(ctx context.Context, s *Staged) {
	if s == nil {
		return
	}
	if err := m.store.Remove(ctx, s.key); err != nil {
		m.logger.Warn("failed to discard staged upload",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
	}
}

// Delete removes a committed image. A file that is already gone is fine.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if err := m.store.Remove(ctx, name); err != nil {
		return fmt.Errorf("deleting upload %s: %w", name, err)
	}
	return nil
}

// Open returns a committed image for serving. Staged objects and anything
// with a path separator are not addressable from outside.
func (m *Manager) Open(ctx context.Context, name string) (io.ReadSeekCloser, Object, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, Object{}, apperror.NotFound("image", name)
	}
	return m.store.Open(ctx, name)
}
