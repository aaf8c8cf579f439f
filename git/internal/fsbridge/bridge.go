// Package fsbridge opens git storage inside an fs.Filesystem. go-git works on
// go-billy filesystems, so only filesystems from fs/billy can be bridged.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/shiguang-schedule/reposync/fs"
	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
)

// minCacheSize is the object cache used when none is configured.
const minCacheSize = 100

// Scope returns the object storage at <workdir>/.git and the worktree rooted
// at workdir, both inside fsys. Neither directory has to exist yet.
func Scope(fsys fs.Filesystem, workdir string, cacheSize int) (*filesystem.Storage, billy.Filesystem, error) {
	raw, ok := fsys.(*billyfs.FS)
	if !ok {
		return nil, nil, fmt.Errorf("git needs a filesystem from fs/billy, got %T", fsys)
	}

	worktree, err := raw.Raw().Chroot(workdir)
	if err != nil {
		return nil, nil, fmt.Errorf("chroot to workdir %q: %w", workdir, err)
	}

	dotGit, err := worktree.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, fmt.Errorf("chroot to %s: %w", git.GitDirName, err)
	}

	return NewStorage(dotGit, cacheSize), worktree, nil
}

// NewStorage returns git object storage on dotGit with an LRU object cache
// of cacheSize entries.
func NewStorage(dotGit billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = minCacheSize
	}
	return filesystem.NewStorage(dotGit, cache.NewObjectLRU(cache.FileSize(cacheSize)))
}
