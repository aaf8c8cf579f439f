package syncer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiguang-schedule/reposync/descriptor"
	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/storage"
)

func newIndexStage(v *fakeVCS) (*IndexStage, *billyfs.FS) {
	fsys := billyfs.NewInMemoryFS()
	tree := storage.NewTree(fsys, "storage", "index.pb")
	s := NewIndexStage(fsys, v, tree, IndexSettings{
		WorkDir:         "index_tmp",
		Branch:          "index",
		DescriptorFile:  "index.pb",
		ProtocolVersion: 1,
		Timeout:         time.Second,
	}, nil)
	return s, fsys
}

func TestIndexStage_Run(t *testing.T) {
	const (
		older = "20240101000000_000"
		newer = "20240301120000_002"
	)

	tests := []struct {
		name      string
		local     string // empty: no durable descriptor
		setup     func(t *testing.T, v *fakeVCS, fsys *billyfs.FS)
		wantBytes bool
		wantID    string
		wantFatal Kind
		wantNote  Note
	}{
		{
			name:      "absent local is always older",
			setup:     func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 1, older) },
			wantBytes: true,
			wantID:    older,
		},
		{
			name:      "newer remote is staged",
			local:     older,
			setup:     func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 1, newer) },
			wantBytes: true,
			wantID:    newer,
		},
		{
			name:     "equal version is a no-op",
			local:    newer,
			setup:    func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 1, newer) },
			wantNote: NoteIndexUnchanged,
		},
		{
			name:      "older remote is a regression",
			local:     newer,
			setup:     func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 1, older) },
			wantFatal: IndexVersionRegression,
		},
		{
			name:      "newer protocol is incompatible",
			local:     older,
			setup:     func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 2, newer) },
			wantFatal: IndexProtocolIncompatible,
		},
		{
			name:      "older protocol is accepted",
			setup:     func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) { v.publishIndex(officialURL, 0, newer) },
			wantBytes: true,
			wantID:    newer,
		},
		{
			name:     "branch absent",
			local:    older,
			setup:    func(_ *testing.T, _ *fakeVCS, _ *billyfs.FS) {},
			wantNote: NoteIndexBranchAbsent,
		},
		{
			name:  "descriptor file absent",
			local: older,
			setup: func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) {
				v.push(officialURL, "index", "empty", map[string]string{"README.md": "x"})
			},
			wantNote: NoteIndexFileAbsent,
		},
		{
			name:  "network failure",
			local: older,
			setup: func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) {
				v.publishIndex(officialURL, 1, newer)
				v.cloneErr["index"] = git.WrapError(git.ErrNetwork, "i/o timeout")
			},
			wantNote: NoteIndexUnavailable,
		},
		{
			name:  "remote descriptor unparseable",
			local: older,
			setup: func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) {
				v.push(officialURL, "index", "bad", map[string]string{"index.pb": "\xff\xff"})
			},
			wantNote: NoteIndexUnavailable,
		},
		{
			name:  "malformed remote version id",
			local: older,
			setup: func(_ *testing.T, v *fakeVCS, _ *billyfs.FS) {
				v.push(officialURL, "index", "bad", map[string]string{
					"index.pb": string(descriptor.Descriptor{ProtocolVersion: 1, DataVersionID: "2024-03-01"}.Marshal()),
				})
			},
			wantNote: NoteIndexUnavailable,
		},
		{
			name: "unreadable local counts as absent",
			setup: func(t *testing.T, v *fakeVCS, fsys *billyfs.FS) {
				v.publishIndex(officialURL, 1, older)
				require.NoError(t, fsys.WriteFile("storage/index/index.pb", []byte("junk"), 0o644))
			},
			wantBytes: true,
			wantID:    older,
			wantNote:  NoteLocalDescriptorUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeVCS()
			v.push(officialURL, "main", "init", nil)
			s, fsys := newIndexStage(v)
			if tt.local != "" {
				writeLocalDescriptor(t, fsys, 1, tt.local)
			}
			tt.setup(t, v, fsys)

			result := &SyncResult{}
			s.Run(context.Background(), officialProfile(), result, nil)

			if tt.wantFatal != "" {
				assert.True(t, result.FatalIndexError)
				assert.Equal(t, tt.wantFatal, result.IndexFailure)
			} else {
				assert.False(t, result.FatalIndexError)
			}

			if tt.wantBytes {
				require.NotNil(t, result.StagedIndexBytes)
				d, err := descriptor.Parse(result.StagedIndexBytes)
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, d.DataVersionID)
				assert.Equal(t, tt.wantID, result.StagedIndexVersionID)
			} else {
				assert.Nil(t, result.StagedIndexBytes)
				assert.Empty(t, result.StagedIndexVersionID)
			}

			if tt.wantNote != "" {
				assert.Contains(t, result.Notes, tt.wantNote)
			}
		})
	}
}

func TestIndexStage_ClearsStaleWorkDir(t *testing.T) {
	v := newFakeVCS()
	v.publishIndex(officialURL, 1, "20240101000000_000")

	s, fsys := newIndexStage(v)
	require.NoError(t, fsys.WriteFile("index_tmp/leftover", []byte("x"), 0o644))

	result := &SyncResult{}
	s.Run(context.Background(), officialProfile(), result, nil)
	require.NotNil(t, result.StagedIndexBytes)

	exists, err := fsys.Exists("index_tmp/leftover")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexStage_LogsTipSummary(t *testing.T) {
	v := newFakeVCS()
	v.publishIndex(officialURL, 1, "20240101000000_000")

	s, _ := newIndexStage(v)
	var lines []string
	s.Run(context.Background(), officialProfile(), &SyncResult{}, collect(&lines))

	var found bool
	for _, l := range lines {
		if strings.HasPrefix(l, "Index tip ") {
			found = true
			assert.Contains(t, l, "publish 20240101000000_000")
		}
	}
	assert.True(t, found, "tip summary logged: %v", lines)
}
