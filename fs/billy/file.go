package billy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// File adapts a go-billy file to fs.File. Errors other than io.EOF carry the
// operation and file name.
type File struct {
	file billy.File
	fs   *FS
}

func (f *File) wrap(op string, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("billy: %s %q: %w", op, f.file.Name(), err)
}

// Name implements fs.File.
func (f *File) Name() string {
	return f.file.Name()
}

// Read implements fs.File.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	return n, f.wrap("read", err)
}

// Write implements fs.File.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, f.wrap("write", err)
}

// Close implements fs.File.
func (f *File) Close() error {
	return f.wrap("close", f.file.Close())
}

// Stat implements fs.File. go-billy files carry no metadata, so the path is
// stat'ed through the owning filesystem.
func (f *File) Stat() (fs.FileInfo, error) {
	info, err := f.fs.fs.Stat(f.file.Name())
	return info, f.wrap("stat", err)
}
