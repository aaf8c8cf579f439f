package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/errors"
)

type cliEnv struct {
	dataDir  string
	config   string
	profiles string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dataDir:  filepath.Join(dir, "data"),
		config:   filepath.Join(dir, "config.yaml"),
		profiles: filepath.Join(dir, "profiles.yaml"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte("journal: true\n"), 0o644))
	return env
}

func (env *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(slog.New(slog.DiscardHandler), nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.config, "--data-dir", env.dataDir, "--profiles", env.profiles}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// newOrigin creates an on-disk remote with resources on master and a
// descriptor on the index branch.
func newOrigin(t *testing.T, versionID string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "Publisher", Email: "publisher@example.com", When: time.Now()}
	commit := func(name string, data []byte) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		_, err = wt.Commit("add "+name, &gogit.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
	}

	commit("resources/schools.json", []byte(`["a"]`))
	commit("resources/adapters.yaml", []byte("internal"))

	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("index"), Create: true}))
	commit("index.pb", descriptor.Descriptor{ProtocolVersion: 1, DataVersionID: versionID}.Marshal())
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")}))
	return dir
}

func TestProfilesCmd(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.profiles, []byte(`repositories:
  - name: official
    type: OFFICIAL
    url: https://example.com/official.git
    branch: main
  - name: mine
    type: PRIVATE_REPO
    url: https://example.com/mine.git
    branch: dev
    credentials:
      password: s3cret
`), 0o644))

	out, err := env.run(t, "profiles")
	require.NoError(t, err)

	assert.Contains(t, out, "official")
	assert.Contains(t, out, "anonymous")
	assert.Contains(t, out, "x-token-auth")
	assert.NotContains(t, out, "s3cret")
}

func TestProfilesCmd_MissingFile(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "profiles")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestStatusAndHistory_Empty(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version:   none")
	assert.Contains(t, out, "resources: 0 files")

	out, err = env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no synchronizations recorded")
}

func TestSyncCmd_Arguments(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.profiles, []byte("[]\n"), 0o644))

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"nothing to sync", []string{"sync"}, errors.CodeInvalidInput},
		{"name and url", []string{"sync", "x", "--url", "https://example.com/r.git"}, errors.CodeInvalidInput},
		{"unknown profile", []string{"sync", "nope"}, errors.CodeNotFound},
		{"bad kind", []string{"sync", "--url", "https://example.com/r.git", "--kind", "friend"}, errors.CodeInvalidInput},
		{"bad commit mode", []string{"sync", "--url", "https://example.com/r.git", "--commit-mode", "rsync"}, errors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Equal(t, 2, exitCode(err))
		})
	}
}

func TestSyncCmd_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("uses on-disk repositories")
	}

	const version = "20240101000000_000"
	env := newCLIEnv(t)
	url := newOrigin(t, version)

	out, err := env.run(t, "sync", "--url", url, "--branch", "master", "--kind", "official")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Committed  version "+version)
	assert.Contains(t, out, "1 files")

	_, err = os.Stat(filepath.Join(env.dataDir, "storage", "resources", "schools.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.dataDir, "storage", "resources", "adapters.yaml"))
	assert.True(t, os.IsNotExist(err))

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version:   "+version+" (protocol 1)")
	assert.Contains(t, out, "resources: 1 files")
	assert.Contains(t, out, "last run:  Committed")

	out, err = env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Committed")
	assert.Contains(t, out, version)
}

func TestSyncCmd_FailedGate(t *testing.T) {
	if testing.Short() {
		t.Skip("uses on-disk repositories")
	}

	env := newCLIEnv(t)
	url := newOrigin(t, "20240101000000_000")

	out, err := env.run(t, "sync", "-q", "--url", url, "--branch", "master", "--kind", "public-fork")
	require.Error(t, err)
	assert.Equal(t, errors.CodeAuthenticityFailure, errors.GetCode(err))
	assert.Equal(t, 10, exitCode(err))
	assert.Contains(t, out, "AuthenticityFailure")
}

func TestSyncCmd_Locked(t *testing.T) {
	if testing.Short() {
		t.Skip("uses on-disk repositories")
	}

	env := newCLIEnv(t)
	url := newOrigin(t, "20240101000000_000")

	require.NoError(t, os.MkdirAll(env.dataDir, 0o755))
	other := flock.New(filepath.Join(env.dataDir, "reposync.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	out, err := env.run(t, "sync", "-q", "--url", url, "--branch", "master", "--kind", "official")
	require.Error(t, err)
	assert.Equal(t, errors.CodeLocked, errors.GetCode(err))
	assert.Equal(t, 15, exitCode(err))
	assert.Contains(t, out, "Locked")

	out, err = env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Locked")

	require.NoError(t, other.Unlock())
	_, err = env.run(t, "sync", "-q", "--url", url, "--branch", "master", "--kind", "official")
	require.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.CodeInvalidConfig, 2},
		{errors.CodeResourceFetchFailure, 11},
		{errors.CodeIndexProtocolIncompatible, 12},
		{errors.CodeIndexVersionRegression, 13},
		{errors.CodeCommitFailure, 14},
		{errors.CodeLocked, 15},
		{errors.CodeInternal, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(errors.New(tt.code, "boom")))
		})
	}
}
