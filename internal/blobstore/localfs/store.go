// Package localfs stores uploaded files in a directory on the local disk.
// Every access goes through an os.Root, so no name can reach outside the
// managed directory even through symlinks.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/calendar-manager/internal/application"
)

// Store is a flat blob directory rooted at Dir.
type Store struct {
	dir  string
	root *os.Root
}

// Open creates dir when needed and opens it as the managed root.
func Open(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", abs, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open upload directory %s: %w", abs, err)
	}
	return &Store{dir: abs, root: root}, nil
}

var _ application.BlobStore = (*Store)(nil)

// Dir returns the absolute managed directory.
func (s *Store) Dir() string {
	return s.dir
}

// FS exposes the managed directory read-only, e.g. for http.FileServerFS.
func (s *Store) FS() fs.FS {
	return s.root.FS()
}

// Close releases the root handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// List returns the regular files directly inside the root.
func (s *Store) List(ctx context.Context) ([]application.BlobObject, error) {
	dir, err := s.root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("open upload directory: %w", err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}

	objects := make([]application.BlobObject, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		objects = append(objects, application.BlobObject{
			Name:       entry.Name(),
			Size:       info.Size(),
			CreatedAt:  info.ModTime(),
			ModifiedAt: info.ModTime(),
		})
	}
	return objects, nil
}

// Create writes data to a new file. It never overwrites.
func (s *Store) Create(ctx context.Context, name string, data []byte) (application.BlobObject, error) {
	if err := s.checkName(name); err != nil {
		return application.BlobObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return application.BlobObject{}, err
	}

	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return application.BlobObject{}, classify(name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.root.Remove(name)
		return application.BlobObject{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.root.Remove(name)
		return application.BlobObject{}, fmt.Errorf("close %s: %w", name, err)
	}

	info, err := s.root.Stat(name)
	if err != nil {
		return application.BlobObject{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return application.BlobObject{
		Name:       name,
		Size:       info.Size(),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// Remove deletes one regular file.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := s.checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.root.Lstat(name)
	if err != nil {
		return classify(name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", application.ErrForbidden, name)
	}
	if err := s.root.Remove(name); err != nil {
		return classify(name, err)
	}
	return nil
}

// checkName rejects names whose lexical resolution leaves the root.
func (s *Store) checkName(name string) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %s resolves outside the upload directory", application.ErrForbidden, name)
	}
	resolved := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s resolves outside the upload directory", application.ErrForbidden, name)
	}
	return nil
}

func classify(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", application.ErrNotFound, name)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", application.ErrBlobExists, name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", application.ErrForbidden, name, err)
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}
