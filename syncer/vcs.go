package syncer

import (
	"context"
	"io"

	"github.com/shiguang-schedule/reposync/fs"
	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/profile"
)

// Credentials are the username/password presented to a remote.
type Credentials struct {
	Username string
	Password string
}

// credentialsFor derives the credentials for p, or nil for anonymous access.
func credentialsFor(p profile.Profile) *Credentials {
	username, password, ok := p.Auth()
	if !ok {
		return nil
	}
	return &Credentials{Username: username, Password: password}
}

// Repository is a local working copy the resource stage keeps up to date.
type Repository interface {
	// FetchBranch fetches branch from url. It returns git.ErrAlreadyUpToDate
	// when nothing changed.
	FetchBranch(ctx context.Context, url, branch string) error

	// ResetHard moves the local branch to the fetched tip and discards local
	// drift. It returns the tip commit hash.
	ResetHard(ctx context.Context, branch string) (string, error)

	// Head describes the checked out commit.
	Head(ctx context.Context) (*git.CommitInfo, error)
}

// VCS is the version-control capability the stages consume. Errors are
// classified with the git package sentinels (git.ErrRefNotFound,
// git.ErrAuthFailed, git.ErrNetwork, ...).
type VCS interface {
	// ListTags returns the tags advertised by url.
	ListTags(ctx context.Context, url string, creds *Credentials) ([]git.RemoteRef, error)

	// Clone clones branch of url into dir within fsys.
	Clone(ctx context.Context, fsys fs.Filesystem, dir, url, branch string, creds *Credentials, progress io.Writer) (Repository, error)

	// Open opens an existing working copy at dir within fsys.
	Open(ctx context.Context, fsys fs.Filesystem, dir string, creds *Credentials, progress io.Writer) (Repository, error)
}

// GitVCS implements VCS with the git package.
type GitVCS struct {
	// ShallowDepth limits clone and fetch history. Zero fetches everything.
	ShallowDepth int

	// AuthHosts restricts credentials to matching host patterns.
	AuthHosts []string
}

// ListTags implements VCS.
func (g GitVCS) ListTags(ctx context.Context, url string, creds *Credentials) ([]git.RemoteRef, error) {
	return git.RemoteTags(ctx, url, g.authFor(creds))
}

// Clone implements VCS.
//
//nolint:ireturn // VCS returns the Repository interface
func (g GitVCS) Clone(
	ctx context.Context,
	fsys fs.Filesystem,
	dir, url, branch string,
	creds *Credentials,
	progress io.Writer,
) (Repository, error) {
	repo, err := git.Clone(ctx, url, branch, g.options(fsys, dir, creds, progress))
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Open implements VCS.
//
//nolint:ireturn // VCS returns the Repository interface
func (g GitVCS) Open(
	ctx context.Context,
	fsys fs.Filesystem,
	dir string,
	creds *Credentials,
	progress io.Writer,
) (Repository, error) {
	repo, err := git.Open(ctx, g.options(fsys, dir, creds, progress))
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (g GitVCS) options(fsys fs.Filesystem, dir string, creds *Credentials, progress io.Writer) *git.Options {
	return &git.Options{
		FS:           fsys,
		Workdir:      dir,
		Auth:         g.authFor(creds),
		Progress:     progress,
		ShallowDepth: g.ShallowDepth,
	}
}

//nolint:ireturn // git.Options takes the AuthProvider interface
func (g GitVCS) authFor(creds *Credentials) git.AuthProvider {
	if creds == nil {
		return nil
	}
	return git.NewBasicAuth(creds.Username, creds.Password, g.AuthHosts...)
}
