// Package git provides a high-level Go wrapper for go-git operations.
// It exposes the handful of task-oriented operations the sync engine needs while
// operating exclusively through the project's native filesystem abstraction.
package git

import (
	"context"
	"fmt"
	"io"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/shiguang-schedule/reposync/fs"
	"github.com/shiguang-schedule/reposync/git/internal/fsbridge"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the remote name recorded by Clone.
	DefaultRemoteName = "origin"

	// FetchRemoteName is the name of the anonymous remote FetchBranch fetches
	// through. Remote-tracking refs land under refs/remotes/FetchRemoteName/.
	FetchRemoteName = "update_remote"
)

// Options configures repository discovery/creation and performance.
type Options struct {
	// FS is the REQUIRED native filesystem root (OS or in-memory).
	// All repository state lives within this filesystem.
	FS fs.Filesystem

	// Workdir is the path within FS for the worktree root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth is an optional provider that resolves per-URL AuthMethod.
	// If nil, no authentication will be available.
	Auth AuthProvider

	// Progress receives the remote's sideband progress output during clone
	// and fetch. May be nil.
	Progress io.Writer

	// ShallowDepth sets the depth for shallow clone/fetch operations.
	// If 0, full clone/fetch operations are performed.
	ShallowDepth int
}

// Validate checks that the Options are properly configured.
// It returns an error if required fields are missing or invalid.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}

	if o.ShallowDepth < 0 {
		return WrapError(ErrInvalidRef, "ShallowDepth cannot be negative")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}

	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// scope resolves the worktree and .git storage for opts.Workdir.
func scope(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	return fsbridge.Scope(opts.FS, opts.Workdir, opts.StorerCacheSize)
}

// Open opens an existing non-bare repository at opts.Workdir.
// Returns ErrNotRepository when the workdir exists but holds no repository.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	storage, worktreeFS, err := scope(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, Classify(err, "failed to open repository")
	}

	return newRepo(repo, opts)
}

// Clone creates a new repository at opts.Workdir by cloning branch from remoteURL.
// Only the requested branch is fetched and no tags are transferred. An empty
// branch clones the remote's default branch.
//
// Returns ErrRefNotFound if the remote does not have the branch. Context
// timeout/cancellation is honored during the clone operation.
func Clone(ctx context.Context, remoteURL, branch string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	storage, worktreeFS, err := scope(opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:          remoteURL,
		RemoteName:   DefaultRemoteName,
		Depth:        opts.ShallowDepth,
		SingleBranch: branch != "" || opts.ShallowDepth > 0,
		Tags:         git.NoTags,
		Progress:     opts.Progress,
	}
	if branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	authMethod, err := resolveAuth(opts.Auth, remoteURL)
	if err != nil {
		return nil, err
	}
	cloneOpts.Auth = authMethod

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		return nil, Classify(err, "failed to clone repository")
	}

	return newRepo(repo, opts)
}

func newRepo(repo *git.Repository, opts *Options) (*Repo, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		fs:       opts.FS,
		options:  *opts,
	}, nil
}

// resolveAuth asks the provider for an AuthMethod. A nil provider means anonymous access.
//
//nolint:ireturn // go-git requires the transport.AuthMethod interface
func resolveAuth(provider AuthProvider, remoteURL string) (transport.AuthMethod, error) {
	if provider == nil {
		return nil, nil
	}
	method, err := provider.Method(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return method, nil
}

// AuthProvider resolves authentication methods for git operations.
// Implementations should handle different URL schemes and credential sources.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	// Returns an error if authentication cannot be resolved for the URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Repo represents a cloned git repository with a worktree.
// It wraps a go-git Repository and Worktree, operating exclusively through
// the project's native filesystem abstraction.
//
// A Repo is NOT safe for concurrent use.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       fs.Filesystem
	options  Options
}
