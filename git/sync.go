// Package git provides a high-level Go wrapper for go-git operations.
// This file contains synchronization operations (fetch, hard reset).
package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// FetchBranch fetches branch from remoteURL into refs/remotes/FetchRemoteName/<branch>.
// The fetch goes through an anonymous remote that is never written to the
// repository config, so the URL may change from one call to the next.
// Returns ErrAlreadyUpToDate if there are no changes to fetch and
// ErrRefNotFound if the remote does not have the branch.
//
// Context timeout/cancellation is honored during the fetch operation.
func (r *Repo) FetchBranch(ctx context.Context, remoteURL, branch string) error {
	if remoteURL == "" {
		return WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}
	if branch == "" {
		return WrapError(ErrInvalidRef, "branch cannot be empty")
	}

	remote := git.NewRemote(r.repo.Storer, &config.RemoteConfig{
		Name: FetchRemoteName,
		URLs: []string{remoteURL},
	})

	spec := config.RefSpec(fmt.Sprintf("+%s:%s",
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName(FetchRemoteName, branch),
	))

	fetchOpts := &git.FetchOptions{
		RemoteName: FetchRemoteName,
		RefSpecs:   []config.RefSpec{spec},
		Depth:      r.options.ShallowDepth,
		Tags:       git.NoTags,
		Force:      true,
		Progress:   r.options.Progress,
	}

	authMethod, err := resolveAuth(r.options.Auth, remoteURL)
	if err != nil {
		return err
	}
	fetchOpts.Auth = authMethod

	err = remote.FetchContext(ctx, fetchOpts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return ErrAlreadyUpToDate
	}
	return Classify(err, "failed to fetch from remote")
}

// ResetHard points the local branch at the tip previously fetched by
// FetchBranch, checks it out, and discards every local modification and
// untracked file so the worktree mirrors the remote tip exactly.
// Returns ErrRefNotFound if the branch was never fetched.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) ResetHard(ctx context.Context, branch string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", WrapError(err, "context cancelled")
	}

	if branch == "" {
		return "", WrapError(ErrInvalidRef, "branch cannot be empty")
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(FetchRemoteName, branch), true)
	if err != nil {
		return "", WrapErrorf(ErrRefNotFound, "remote branch %q was not fetched", branch)
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(localRef, remoteRef.Hash())); err != nil {
		return "", WrapError(err, "failed to move branch reference")
	}
	if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, localRef)); err != nil {
		return "", WrapError(err, "failed to point HEAD at branch")
	}

	err = r.worktree.Reset(&git.ResetOptions{
		Commit: remoteRef.Hash(),
		Mode:   git.HardReset,
	})
	if err != nil {
		return "", WrapError(err, "failed to reset worktree")
	}

	if err := r.worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return "", WrapError(err, "failed to remove untracked files")
	}

	return remoteRef.Hash().String(), nil
}
