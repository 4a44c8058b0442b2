// Package fakefs is an in-memory ports.FileSystem for tests.
package fakefs

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Op names an operation that can be made to fail.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpOpen   Op = "open"
	OpMkdir  Op = "mkdir"
	OpRename Op = "rename"
	OpRemove Op = "remove"
)

type file struct {
	data []byte
	mode fs.FileMode
}

// FS keeps files and directories in maps keyed by cleaned slash paths.
type FS struct {
	mu    sync.Mutex
	files map[string]*file
	dirs  map[string]bool
	home  string
	fail  map[Op]error
}

// New returns an empty filesystem whose home is /home/test.
func New() *FS {
	return &FS{
		files: make(map[string]*file),
		dirs:  map[string]bool{"/": true},
		home:  "/home/test",
		fail:  make(map[Op]error),
	}
}

// Fail makes every later op return err. A nil err clears the failure.
func (f *FS) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[OpRead]; err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	fl, ok := f.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(fl.data), nil
}

// WriteFile creates missing parent directories.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[OpWrite]; err != nil {
		return err
	}
	name = path.Clean(name)
	f.mkdirs(path.Dir(name))
	f.files[name] = &file{data: bytes.Clone(data), mode: perm}
	return nil
}

// OpenFile honours O_CREATE, O_EXCL and O_TRUNC. Writes through the handle
// append and are visible immediately.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[OpOpen]; err != nil {
		return nil, err
	}
	name = path.Clean(name)
	fl, exists := f.files[name]
	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	case !exists && flag&os.O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case !exists:
		f.mkdirs(path.Dir(name))
		fl = &file{mode: perm}
		f.files[name] = fl
	}
	if flag&os.O_TRUNC != 0 {
		fl.data = nil
	}
	return &handle{fs: f, name: name}, nil
}

func (f *FS) MkdirAll(dir string, _ fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[OpMkdir]; err != nil {
		return err
	}
	f.mkdirs(dir)
	return nil
}

// Rename replaces newpath.
func (f *FS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[OpRename]; err != nil {
		return err
	}
	oldpath, newpath = path.Clean(oldpath), path.Clean(newpath)
	fl, ok := f.files[oldpath]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	f.files[newpath] = fl
	delete(f.files, oldpath)
	return nil
}

func (f *FS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[OpRemove]; err != nil {
		return err
	}
	delete(f.files, path.Clean(name))
	return nil
}

func (f *FS) UserHomeDir() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.home, nil
}

func (f *FS) mkdirs(dir string) {
	for dir = path.Clean(dir); dir != "/" && dir != "."; dir = path.Dir(dir) {
		f.dirs[dir] = true
	}
}

// AddFile seeds a file.
func (f *FS) AddFile(name string, data []byte, mode fs.FileMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = path.Clean(name)
	f.mkdirs(path.Dir(name))
	f.files[name] = &file{data: bytes.Clone(data), mode: mode}
}

// SetHomeDir changes what UserHomeDir returns.
func (f *FS) SetHomeDir(dir string) {
	f.mu.Lock()
	f.home = dir
	f.mu.Unlock()
}

// Exists reports whether name is a file.
func (f *FS) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path.Clean(name)]
	return ok
}

// Mode returns a file's permission bits, or 0 when it is missing.
func (f *FS) Mode(name string) fs.FileMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl, ok := f.files[path.Clean(name)]; ok {
		return fl.mode
	}
	return 0
}

func (f *FS) HasDir(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path.Clean(dir)]
}

// Files lists every file path, sorted.
func (f *FS) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type handle struct {
	fs     *FS
	name   string
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0, fs.ErrClosed
	}
	fl, ok := h.fs.files[h.name]
	if !ok {
		return 0, &fs.PathError{Op: "write", Path: h.name, Err: fs.ErrNotExist}
	}
	fl.data = append(fl.data, p...)
	return len(p), nil
}

func (h *handle) Close() error {
	h.fs.mu.Lock()
	h.closed = true
	h.fs.mu.Unlock()
	return nil
}

func (h *handle) Name() string { return h.name }

var _ ports.FileSystem = (*FS)(nil)
