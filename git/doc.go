// Package git provides a small, task-oriented facade over go-git.
//
// It covers exactly what a read-only mirror of a remote repository needs:
// listing a remote's refs, cloning a single branch, fetching that branch
// again later and hard-resetting the worktree onto it. Every operation runs
// through the project's native filesystem abstraction, so the same code works
// against the OS and against an in-memory filesystem.
//
// # Basic Usage
//
//	fsys := billyfs.NewOSFS("/var/lib/reposync")
//
//	repo, err := git.Clone(ctx, "https://example.com/data.git", "main", &git.Options{
//	    FS:      fsys,
//	    Workdir: "repo",
//	    Auth:    git.NewBasicAuth("x-token-auth", token),
//	})
//
// Later runs reopen the clone and bring it up to date:
//
//	repo, err := git.Open(ctx, &git.Options{FS: fsys, Workdir: "repo"})
//	err = repo.FetchBranch(ctx, url, "main")
//	if err != nil && !errors.Is(err, git.ErrAlreadyUpToDate) {
//	    return err
//	}
//	tip, err := repo.ResetHard(ctx, "main")
//
// # Remote Refs
//
// ListRemote and RemoteTags read a remote's ref advertisement without
// cloning. Annotated tags carry the commit they peel to:
//
//	tags, err := git.RemoteTags(ctx, url, nil,
//	    git.TagNameFilter("lighthouse"),
//	    git.TagTargetFilter("eb49b7c18272c624d12198b03aabf7fc114a7106"))
//
// # Error Handling
//
// Failures from go-git are mapped onto sentinel errors (ErrRefNotFound,
// ErrAuthRequired, ErrAuthFailed, ErrNetwork, ...) that can be checked with
// errors.Is. The original go-git error stays in the chain.
//
// # Progress
//
// Options.Progress receives the remote's sideband output. Wrap a line sink
// in a ProgressWriter to receive one "[git] ..." line per redraw.
//
// # Thread Safety
//
// A Repo instance is NOT safe for concurrent use.
package git
