package ports

import (
	"io"
	"io/fs"
)

// FileSystem is the file access used by the profile store, recordings,
// known_hosts loading and config files.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	// OpenFile opens name for writing.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)
	MkdirAll(path string, perm fs.FileMode) error
	// Rename replaces newpath atomically where the platform allows it.
	Rename(oldpath, newpath string) error
	// Remove deletes a file. A missing file is not an error.
	Remove(name string) error
	UserHomeDir() (string, error)
}

// FileHandle is a writable open file.
type FileHandle interface {
	io.WriteCloser
	Name() string
}
