// Package realfs backs ports.FileSystem with the os package.
package realfs

import (
	"errors"
	"io/fs"
	"os"

	"github.com/acolita/hydra-sh/internal/ports"
)

// FS is the host filesystem.
type FS struct{}

func New() FS { return FS{} }

func (FS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	return os.OpenFile(name, flag, perm)
}

func (FS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (FS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (FS) Remove(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (FS) UserHomeDir() (string, error) { return os.UserHomeDir() }

var _ ports.FileSystem = FS{}
