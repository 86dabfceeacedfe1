package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Storage is the read-only view of the served asset tree. Paths are
// slash-separated and relative to the serve root.
type Storage interface {
	Retrieve(name string) (io.ReadSeekCloser, error)
	Stat(name string) (os.FileInfo, error)
	Exists(name string) (bool, error)
	FS() fs.FS
}

type FileStorage struct {
	fs afero.Fs
}

// NewFileStorage roots a read-only storage at basePath on the given
// filesystem.
func NewFileStorage(base afero.Fs, basePath string) *FileStorage {
	return &FileStorage{
		fs: afero.NewReadOnlyFs(afero.NewBasePathFs(base, basePath)),
	}
}

// NewOSStorage roots a read-only storage at basePath on the OS filesystem.
func NewOSStorage(basePath string) *FileStorage {
	return NewFileStorage(afero.NewOsFs(), basePath)
}

func clean(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}

func (s *FileStorage) rel(name string) string {
	if c := clean(name); c != "" {
		return c
	}
	return "."
}

func (s *FileStorage) Retrieve(name string) (io.ReadSeekCloser, error) {
	file, err := s.fs.Open(s.rel(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *FileStorage) Stat(name string) (os.FileInfo, error) {
	return s.fs.Stat(s.rel(name))
}

func (s *FileStorage) Exists(name string) (bool, error) {
	_, err := s.fs.Stat(s.rel(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// FS exposes the storage as an io/fs filesystem for http.FileServerFS.
func (s *FileStorage) FS() fs.FS {
	return afero.NewIOFS(s.fs)
}
