// Package storage manages the durable storage tree that a synchronization
// publishes into:
//
//	<root>/index/<descriptor>    the current version descriptor
//	<root>/resources/...         the mirrored resource tree
//
// The tree has a single writer. Readers elsewhere must tolerate it being
// briefly empty while a generation is rewritten.
package storage

import (
	stderrors "errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/errors"
	"github.com/shiguang-schedule/reposync/fs"
)

const (
	// IndexDir holds the descriptor.
	IndexDir = "index"

	// ResourcesDir holds the mirrored resource tree.
	ResourcesDir = "resources"

	// DefaultDescriptorName is the descriptor file name inside IndexDir.
	DefaultDescriptorName = "index.pb"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Tree is a durable storage root inside a filesystem.
type Tree struct {
	fs             fs.Filesystem
	root           string
	descriptorName string
}

// NewTree returns the tree rooted at root within fsys. An empty
// descriptorName means DefaultDescriptorName.
func NewTree(fsys fs.Filesystem, root, descriptorName string) *Tree {
	if descriptorName == "" {
		descriptorName = DefaultDescriptorName
	}
	return &Tree{fs: fsys, root: path.Clean(root), descriptorName: descriptorName}
}

// Root returns the tree's root path.
func (t *Tree) Root() string { return t.root }

// DescriptorPath returns the path of the descriptor file.
func (t *Tree) DescriptorPath() string {
	return path.Join(t.root, IndexDir, t.descriptorName)
}

// ResourcePath maps a path relative to the resources root to its durable location.
func (t *Tree) ResourcePath(rel string) string {
	return path.Join(t.root, ResourcesDir, rel)
}

// ReadDescriptor returns the raw descriptor bytes, or nil if there is none.
func (t *Tree) ReadDescriptor() ([]byte, error) {
	data, err := t.fs.ReadFile(t.DescriptorPath())
	if err != nil {
		if stderrors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read descriptor")
	}
	return data, nil
}

// Descriptor returns the parsed current descriptor, or nil if there is none.
// Unparseable bytes are reported as an error; callers decide whether that
// counts as absent.
func (t *Tree) Descriptor() (*descriptor.Descriptor, error) {
	data, err := t.ReadDescriptor()
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return descriptor.Parse(data)
}

// WriteDescriptor replaces the descriptor with data.
func (t *Tree) WriteDescriptor(data []byte) error {
	if err := t.fs.MkdirAll(path.Join(t.root, IndexDir), dirPerm); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to create index directory")
	}
	if err := t.fs.WriteFile(t.DescriptorPath(), data, filePerm); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to write descriptor")
	}
	return nil
}

// Reset deletes the whole tree and recreates an empty root.
func (t *Tree) Reset() error {
	if err := t.fs.RemoveAll(t.root); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to delete storage root")
	}
	if err := t.fs.MkdirAll(t.root, dirPerm); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to recreate storage root")
	}
	return nil
}

// Remove deletes the whole tree.
func (t *Tree) Remove() error {
	if err := t.fs.RemoveAll(t.root); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to delete storage tree")
	}
	return nil
}

// CopyFile copies src from the same filesystem to dst, creating parent
// directories and overwriting dst. It returns the number of bytes copied.
func (t *Tree) CopyFile(src, dst string) (int64, error) {
	if err := t.fs.MkdirAll(path.Dir(dst), dirPerm); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", dst, err)
	}

	in, err := t.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := t.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return n, nil
}

// Resources lists every regular file under the resources root, relative to
// it, in lexical order.
func (t *Tree) Resources() ([]string, error) {
	base := path.Join(t.root, ResourcesDir)
	exists, err := t.fs.Exists(base)
	if err != nil || !exists {
		return nil, err
	}

	var files []string
	err = t.fs.Walk(base, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.Mode().IsRegular() {
			files = append(files, strings.TrimPrefix(strings.TrimPrefix(p, base), "/"))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list resources")
	}

	sort.Strings(files)
	return files, nil
}

// Sibling returns a hidden tree next to this one, "<dir>/.<base>.<name>",
// sharing the descriptor name. It is used to build a generation before
// swapping it in. The name never starts with the root's own name, so renaming
// the root cannot touch it.
func (t *Tree) Sibling(name string) *Tree {
	return &Tree{fs: t.fs, root: t.siblingPath(name), descriptorName: t.descriptorName}
}

func (t *Tree) siblingPath(name string) string {
	return path.Join(path.Dir(t.root), "."+path.Base(t.root)+"."+name)
}

// Replace moves next into this tree's place. The current tree is first
// renamed aside and deleted only once next is in place; if moving next
// fails, the current tree is put back.
func (t *Tree) Replace(next *Tree) error {
	old := t.siblingPath("old")
	if err := t.fs.RemoveAll(old); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to clear previous generation")
	}

	hadCurrent, err := t.fs.Exists(t.root)
	if err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to stat storage root")
	}
	if hadCurrent {
		if err := t.fs.Rename(t.root, old); err != nil {
			return errors.Wrap(err, errors.CodeCommitFailure, "failed to move current generation aside")
		}
	}

	if err := t.fs.Rename(next.root, t.root); err != nil {
		if hadCurrent {
			if restoreErr := t.fs.Rename(old, t.root); restoreErr != nil {
				err = stderrors.Join(err, restoreErr)
			}
		}
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to swap in new generation")
	}

	if err := t.fs.RemoveAll(old); err != nil {
		return errors.Wrap(err, errors.CodeCommitFailure, "failed to delete previous generation")
	}
	return nil
}
