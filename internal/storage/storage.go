package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore implements Store on top of an afero filesystem. Production code
// passes an OS-backed filesystem rooted at the upload directory; tests use
// afero.NewMemMapFs.
type AferoStore struct {
	fs afero.Fs
}

var _ Store = (*AferoStore)(nil)

// NewAferoStore creates a new AferoStore.
func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// NewDiskStore returns a store whose paths are relative to root on the local
// disk. root is created if it does not exist.
func NewDiskStore(root string) (*AferoStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return NewAferoStore(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// Save writes the content of the reader to path, creating parent directories
// as needed. An existing file is truncated.
func (s *AferoStore) Save(ctx context.Context, path string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Delete removes the file at path.
func (s *AferoStore) Delete(ctx context.Context, path string) error {
	return s.fs.Remove(path)
}

// Open opens the file at path for reading.
func (s *AferoStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.fs.OpenFile(path, os.O_RDONLY, 0)
}

// Fs exposes the underlying filesystem, e.g. for serving files over HTTP.
func (s *AferoStore) Fs() afero.Fs {
	return s.fs
}
