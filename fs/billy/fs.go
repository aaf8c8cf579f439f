// Package billy adapts go-billy filesystems to the fs.Filesystem interface.
// The same adapter backs the on-disk data directory in production and the
// in-memory trees used throughout the tests.
package billy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/shiguang-schedule/reposync/fs"
)

// FS implements fs.Filesystem on a go-billy filesystem. Every error carries
// the operation and path and still matches os.ErrNotExist and friends.
type FS struct {
	fs billy.Filesystem
}

// NewFS wraps fsys.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

// NewInMemoryFS returns an empty in-memory filesystem.
func NewInMemoryFS() *FS {
	return NewFS(memfs.New())
}

// NewOSFS returns the OS filesystem rooted at root. Paths passed to the
// returned FS are relative to root.
func NewOSFS(root string) *FS {
	return NewFS(osfs.New(root))
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // go-git consumes the billy.Filesystem interface
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("billy: %s %q: %w", op, path, err)
}

func (b *FS) file(f billy.File, err error, op, name string) (parentfs.File, error) {
	if err != nil {
		return nil, wrap(op, name, err)
	}
	return &File{file: f, fs: b}, nil
}

// Create implements fs.Filesystem.
//
//nolint:ireturn // fs.Filesystem returns the fs.File interface
func (b *FS) Create(name string) (parentfs.File, error) {
	f, err := b.fs.Create(name)
	return b.file(f, err, "create", name)
}

// Open implements fs.Filesystem.
//
//nolint:ireturn // fs.Filesystem returns the fs.File interface
func (b *FS) Open(name string) (parentfs.File, error) {
	f, err := b.fs.Open(name)
	return b.file(f, err, "open", name)
}

// OpenFile implements fs.Filesystem.
//
//nolint:ireturn // fs.Filesystem returns the fs.File interface
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (parentfs.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	return b.file(f, err, "openfile", name)
}

// ReadFile implements fs.Filesystem.
func (b *FS) ReadFile(name string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, name)
	return data, wrap("readfile", name, err)
}

// WriteFile implements fs.Filesystem. Parent directories are created.
func (b *FS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return wrap("writefile", name, util.WriteFile(b.fs, name, data, perm))
}

// Stat implements fs.Filesystem.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	return info, wrap("stat", name, err)
}

// Exists implements fs.Filesystem.
func (b *FS) Exists(name string) (bool, error) {
	_, err := b.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, wrap("stat", name, err)
	}
}

// Rename implements fs.Filesystem.
func (b *FS) Rename(oldpath, newpath string) error {
	return wrap("rename", oldpath+" -> "+newpath, b.fs.Rename(oldpath, newpath))
}

// Remove implements fs.Filesystem.
func (b *FS) Remove(name string) error {
	return wrap("remove", name, b.fs.Remove(name))
}

// RemoveAll implements fs.Filesystem.
func (b *FS) RemoveAll(name string) error {
	return wrap("removeall", name, util.RemoveAll(b.fs, name))
}

// ReadDir implements fs.Filesystem.
func (b *FS) ReadDir(name string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(name)
	return list, wrap("readdir", name, err)
}

// MkdirAll implements fs.Filesystem.
func (b *FS) MkdirAll(name string, perm os.FileMode) error {
	return wrap("mkdirall", name, b.fs.MkdirAll(name, perm))
}

// Walk implements fs.Filesystem.
func (b *FS) Walk(root string, fn filepath.WalkFunc) error {
	return wrap("walk", root, util.Walk(b.fs, root, fn))
}
