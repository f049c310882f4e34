package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sakif/recipe-box/internal/apperror"
)

var _ Store = (*FSStore)(nil)

// tmpPrefix marks half-written files. List reports them as Partial.
const tmpPrefix = ".tmp-"

// FSStore keeps objects as plain files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates root if it does not exist yet.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating directory %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// path maps a key onto the filesystem, refusing anything that could escape
// root ("..", absolute paths, empty elements).
func (s *FSStore) path(key string) (string, error) {
	if !fs.ValidPath(key) || key == "." {
		return "", fmt.Errorf("upload: invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes to a temp file in the destination directory and renames it
// into place, so a reader never sees a partial image.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("upload: creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("upload: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("upload: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("upload: closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("upload: storing %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Move(_ context.Context, src, dst string) error {
	from, err := s.path(src)
	if err != nil {
		return err
	}
	to, err := s.path(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("upload: creating directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("upload: moving %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *FSStore) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("upload: removing %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadSeekCloser, Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, Object{}, apperror.NotFound("image", key)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, apperror.NotFound("image", key)
		}
		return nil, Object{}, fmt.Errorf("upload: opening %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, fmt.Errorf("upload: stat %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, Object{}, apperror.NotFound("image", key)
	}
	return f, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List walks the whole tree. Keys come back slash-separated and relative to
// root. Temp files from an interrupted Put are included with Partial set.
func (s *FSStore) List(_ context.Context) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
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
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Key:     path.Clean(filepath.ToSlash(rel)),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Partial: strings.HasPrefix(d.Name(), tmpPrefix),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload: listing %s: %w", s.root, err)
	}
	return objects, nil
}
