package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FSStore stores blobs on a filesystem rooted at a base directory. It is the
// development and test backend; production deployments use S3Store.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a filesystem store rooted at root on the OS filesystem.
func NewFSStore(root string) (*FSStore, error) {
	return NewFSStoreWithFs(afero.NewOsFs(), root)
}

// NewFSStoreWithFs creates a filesystem store over an arbitrary afero
// filesystem. Tests use afero.NewMemMapFs.
func NewFSStoreWithFs(afs afero.Fs, root string) (*FSStore, error) {
	if err := afs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	return &FSStore{fs: afs, root: root}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes data under key, creating parent directories as needed.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", &StoreError{Op: "put", Key: key, Err: err}
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return "", &StoreError{Op: "put", Key: key, Err: err}
	}
	return key, nil
}

// Get reads the blob at location.
func (s *FSStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(location))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("get %s: %w", location, ErrNotFound)
		}
		return nil, &StoreError{Op: "get", Key: location, Err: err}
	}
	return data, nil
}

// Delete removes the blob at location. Absent blobs are not an error.
func (s *FSStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(s.path(location)); err != nil && !os.IsNotExist(err) {
		return &StoreError{Op: "delete", Key: location, Err: err}
	}
	return nil
}

// Walk visits every stored key under the root.
func (s *FSStore) Walk(ctx context.Context, fn func(key string, modified time.Time) error) error {
	return afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.ModTime())
	})
}

// URI renders a file:// form of a location.
func (s *FSStore) URI(location string) string {
	return "file://" + path.Join(strings.ReplaceAll(s.root, string(os.PathSeparator), "/"), location)
}

var _ Store = (*FSStore)(nil)
