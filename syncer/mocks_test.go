package syncer

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiguang-schedule/reposync/config"
	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/fs"
	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/profile"
)

const (
	officialURL = "https://example.com/official.git"
	forkURL     = "https://example.com/fork.git"
	baselineTag = config.DefaultBaselineTag
	baselineSHA = config.DefaultBaselineHash
)

// fakeCommit is a snapshot of a branch.
type fakeCommit struct {
	hash    string
	message string
	files   map[string]string
}

// fakeVCS is a scripted, in-memory VCS. Remotes are keyed by URL; every
// pushed commit is kept so a mirror can be reopened from its HEAD file.
type fakeVCS struct {
	mu sync.Mutex

	remotes map[string]map[string]*fakeCommit
	tags    map[string][]git.RemoteRef
	commits map[string]*fakeCommit
	seq     int

	listErr  error
	cloneErr map[string]error // by branch
	fetchErr error

	calls map[string]int
	creds []*Credentials
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		remotes:  map[string]map[string]*fakeCommit{},
		tags:     map[string][]git.RemoteRef{},
		commits:  map[string]*fakeCommit{},
		cloneErr: map[string]error{},
		calls:    map[string]int{},
	}
}

// push sets the tip of url@branch to a new commit with files and returns its hash.
func (v *fakeVCS) push(url, branch, message string, files map[string]string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	c := &fakeCommit{
		hash:    fmt.Sprintf("%040x", v.seq),
		message: message,
		files:   maps.Clone(files),
	}
	if v.remotes[url] == nil {
		v.remotes[url] = map[string]*fakeCommit{}
	}
	v.remotes[url][branch] = c
	v.commits[c.hash] = c
	return c.hash
}

// publishIndex pushes a descriptor to url's index branch.
func (v *fakeVCS) publishIndex(url string, protocol int, id string) string {
	d := descriptor.Descriptor{ProtocolVersion: protocol, DataVersionID: id}
	return v.push(url, "index", "chore(data): publish "+id, map[string]string{"index.pb": string(d.Marshal())})
}

func (v *fakeVCS) tag(url, name, hash string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags[url] = append(v.tags[url], git.RemoteRef{Kind: git.RefTag, Name: name, Hash: hash})
}

func (v *fakeVCS) count(op string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

func (v *fakeVCS) record(op string, creds *Credentials) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[op]++
	v.creds = append(v.creds, creds)
}

func (v *fakeVCS) lookup(url, branch string) (*fakeCommit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	branches, ok := v.remotes[url]
	if !ok {
		return nil, git.WrapErrorf(git.ErrRepositoryNotFound, "remote %s", url)
	}
	c, ok := branches[branch]
	if !ok {
		return nil, git.WrapErrorf(git.ErrRefNotFound, "branch %s", branch)
	}
	return c, nil
}

func (v *fakeVCS) ListTags(ctx context.Context, url string, creds *Credentials) ([]git.RemoteRef, error) {
	v.record("ListTags", creds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.listErr != nil {
		return nil, v.listErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.remotes[url]; !ok {
		return nil, git.WrapErrorf(git.ErrRepositoryNotFound, "remote %s", url)
	}
	return append([]git.RemoteRef(nil), v.tags[url]...), nil
}

//nolint:ireturn // VCS returns the Repository interface
func (v *fakeVCS) Clone(
	ctx context.Context,
	fsys fs.Filesystem,
	dir, url, branch string,
	creds *Credentials,
	progress io.Writer,
) (Repository, error) {
	v.record("Clone:"+branch, creds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := v.cloneErr[branch]; err != nil {
		return nil, err
	}
	c, err := v.lookup(url, branch)
	if err != nil {
		return nil, err
	}

	repo := &fakeRepo{vcs: v, fs: fsys, dir: dir, head: c}
	if err := repo.checkout(); err != nil {
		return nil, err
	}
	if progress != nil {
		fmt.Fprintf(progress, "Receiving objects: 100%% (%d/%d), done.\n", len(c.files), len(c.files))
	}
	return repo, nil
}

//nolint:ireturn // VCS returns the Repository interface
func (v *fakeVCS) Open(
	ctx context.Context,
	fsys fs.Filesystem,
	dir string,
	creds *Credentials,
	_ io.Writer,
) (Repository, error) {
	v.record("Open", creds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fsys.ReadFile(path.Join(dir, ".git", "HEAD"))
	if err != nil {
		return nil, git.WrapErrorf(git.ErrNotRepository, "%s", dir)
	}
	v.mu.Lock()
	c, ok := v.commits[strings.TrimSpace(string(data))]
	v.mu.Unlock()
	if !ok {
		return nil, git.WrapErrorf(git.ErrNotRepository, "%s: unknown HEAD", dir)
	}
	return &fakeRepo{vcs: v, fs: fsys, dir: dir, head: c}, nil
}

// fakeRepo is a working copy materialized into a filesystem.
type fakeRepo struct {
	vcs     *fakeVCS
	fs      fs.Filesystem
	dir     string
	head    *fakeCommit
	fetched *fakeCommit
}

func (r *fakeRepo) FetchBranch(ctx context.Context, url, branch string) error {
	r.vcs.record("Fetch", nil)
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.vcs.fetchErr != nil {
		return r.vcs.fetchErr
	}
	c, err := r.vcs.lookup(url, branch)
	if err != nil {
		return err
	}
	r.fetched = c
	if c.hash == r.head.hash {
		return git.ErrAlreadyUpToDate
	}
	return nil
}

func (r *fakeRepo) ResetHard(_ context.Context, _ string) (string, error) {
	if r.fetched != nil {
		r.head = r.fetched
	}
	if err := r.checkout(); err != nil {
		return "", err
	}
	return r.head.hash, nil
}

func (r *fakeRepo) Head(_ context.Context) (*git.CommitInfo, error) {
	return &git.CommitInfo{Hash: r.head.hash, Message: r.head.message}, nil
}

// checkout replaces the working tree with head, dropping untracked files.
func (r *fakeRepo) checkout() error {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	entries, err := r.fs.ReadDir(r.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := r.fs.RemoveAll(path.Join(r.dir, e.Name())); err != nil {
			return err
		}
	}
	for name, content := range r.head.files {
		if err := r.fs.WriteFile(path.Join(r.dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return r.fs.WriteFile(path.Join(r.dir, ".git", "HEAD"), []byte(r.head.hash+"\n"), 0o644)
}

// testConfig returns defaults suitable for an in-memory data directory.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DataDir = "/data"
	return &cfg
}

func newTestEngine(t *testing.T, vcs VCS, cfg *config.Config, opts ...Option) (*Engine, *billyfs.FS) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	fsys := billyfs.NewInMemoryFS()
	e, err := New(fsys, cfg, append([]Option{WithVCS(vcs)}, opts...)...)
	require.NoError(t, err)
	return e, fsys
}

func officialProfile() profile.Profile {
	return profile.Profile{Name: "official", Kind: profile.Official, URL: officialURL, Branch: "main"}
}

func forkProfile(kind profile.Kind) profile.Profile {
	return profile.Profile{Name: "fork", Kind: kind, URL: forkURL, Branch: "main"}
}

// collect returns a LogSink appending into lines.
func collect(lines *[]string) LogSink {
	return func(line string) { *lines = append(*lines, line) }
}

func readDescriptor(t *testing.T, fsys fs.Filesystem) []byte {
	t.Helper()
	data, err := fsys.ReadFile("storage/index/index.pb")
	require.NoError(t, err)
	return data
}

func writeLocalDescriptor(t *testing.T, fsys fs.Filesystem, protocol int, id string) []byte {
	t.Helper()
	data := descriptor.Descriptor{ProtocolVersion: protocol, DataVersionID: id}.Marshal()
	require.NoError(t, fsys.WriteFile("storage/index/index.pb", data, 0o644))
	return data
}
