package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
)

// testOrigin is an on-disk repository used as the remote in tests.
// Its directory path doubles as the remote URL.
type testOrigin struct {
	dir  string
	repo *gogit.Repository
}

var testSignature = object.Signature{
	Name:  "Test User",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

// newTestOrigin creates a repository with one commit on master.
func newTestOrigin(t *testing.T) *testOrigin {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err, "failed to init origin")

	o := &testOrigin{dir: dir, repo: repo}
	o.commit(t, map[string]string{"README.md": "# origin\n"}, "chore: initial commit")
	return o
}

// checkout switches the origin worktree to branch, creating it from HEAD if needed.
func (o *testOrigin) checkout(t *testing.T, branch string) {
	t.Helper()

	wt, err := o.repo.Worktree()
	require.NoError(t, err)

	name := plumbing.NewBranchReferenceName(branch)
	_, err = o.repo.Reference(name, true)
	err = wt.Checkout(&gogit.CheckoutOptions{Branch: name, Create: err != nil})
	require.NoError(t, err, "failed to checkout %s", branch)
}

// commit writes files (an empty value deletes the file) and commits them on
// the current branch.
func (o *testOrigin) commit(t *testing.T, files map[string]string, msg string) string {
	t.Helper()

	wt, err := o.repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		path := filepath.Join(o.dir, name)
		if content == "" {
			_, err = wt.Remove(name)
			require.NoError(t, err, "failed to remove %s", name)
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err = wt.Add(name)
		require.NoError(t, err, "failed to add %s", name)
	}

	sig := testSignature
	hash, err := wt.Commit(msg, &gogit.CommitOptions{Author: &sig, Committer: &sig})
	require.NoError(t, err, "failed to commit")
	return hash.String()
}

// tag creates a tag on hash. Annotated tags get a tag object.
func (o *testOrigin) tag(t *testing.T, name, hash string, annotated bool) {
	t.Helper()

	var opts *gogit.CreateTagOptions
	if annotated {
		sig := testSignature
		opts = &gogit.CreateTagOptions{Tagger: &sig, Message: name}
	}
	_, err := o.repo.CreateTag(name, plumbing.NewHash(hash), opts)
	require.NoError(t, err, "failed to create tag %s", name)
}

// newLocalOptions returns Options over a fresh on-disk directory.
func newLocalOptions(t *testing.T, workdir string) (*Options, *billyfs.FS) {
	t.Helper()

	fsys := billyfs.NewOSFS(t.TempDir())
	return &Options{FS: fsys, Workdir: workdir}, fsys
}
