// Package fs defines the filesystem abstraction shared by the git facade, the
// sync stages and the durable storage tree.
//
// Everything that touches disk goes through Filesystem so that the whole sync
// pipeline can run against an in-memory filesystem in tests.
package fs

import (
	"os"
	"path/filepath"
)

// Filesystem is the minimal set of operations the sync engine needs.
type Filesystem interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	// RemoveAll removes path and any children it contains. A missing path is
	// not an error.
	RemoveAll(path string) error
	ReadDir(name string) ([]os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Walk(root string, fn filepath.WalkFunc) error
}
