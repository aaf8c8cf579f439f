package fs

import (
	"io"
	"io/fs"
)

// File is an open file handle.
type File interface {
	io.ReadWriteCloser

	// Name returns the path the file was opened with.
	Name() string

	Stat() (fs.FileInfo, error)
}
