package syncer

import (
	"context"
	stderrors "errors"
	iofs "io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/fs"
	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/profile"
	"github.com/shiguang-schedule/reposync/storage"
)

// IndexSettings configure the descriptor branch.
type IndexSettings struct {
	// WorkDir is the disposable clone directory. The Engine deletes it after
	// every run.
	WorkDir string

	Branch         string
	DescriptorFile string

	// ProtocolVersion is the newest descriptor protocol this client reads.
	ProtocolVersion int

	Timeout time.Duration
}

// IndexStage fetches the remote descriptor and decides whether it replaces
// the durable one.
type IndexStage struct {
	fs       fs.Filesystem
	vcs      VCS
	tree     *storage.Tree
	settings IndexSettings
	logger   *slog.Logger
}

// NewIndexStage returns an IndexStage comparing against tree.
func NewIndexStage(fsys fs.Filesystem, vcs VCS, tree *storage.Tree, settings IndexSettings, logger *slog.Logger) *IndexStage {
	return &IndexStage{fs: fsys, vcs: vcs, tree: tree, settings: settings, logger: orDiscard(logger)}
}

// Run records its decision in result. Only an incompatible protocol or a
// version regression is fatal; every other problem is noted and the durable
// descriptor is kept.
func (s *IndexStage) Run(ctx context.Context, p profile.Profile, result *SyncResult, sink LogSink) {
	data, ok := s.fetch(ctx, p, result, sink)
	if !ok {
		return
	}

	remote, err := descriptor.Parse(data)
	if err != nil {
		result.note(NoteIndexUnavailable)
		sink.printf("Remote descriptor is invalid, keeping the current one.")
		s.logger.WarnContext(ctx, "failed to parse remote descriptor", "error", err)
		return
	}
	result.Remote = remote

	if remote.ProtocolVersion > s.settings.ProtocolVersion {
		result.fail(IndexProtocolIncompatible)
		sink.printf("Remote data needs protocol %d but this client supports %d. Update the client.",
			remote.ProtocolVersion, s.settings.ProtocolVersion)
		s.logger.ErrorContext(ctx, "remote descriptor protocol is newer than supported",
			"remote", remote.ProtocolVersion, "supported", s.settings.ProtocolVersion)
		return
	}

	local := s.localVersion(ctx, result)
	result.LocalVersionID = local

	switch descriptor.Compare(remote.DataVersionID, local) {
	case 1:
		result.StagedIndexBytes = data
		result.StagedIndexVersionID = remote.DataVersionID
		sink.printf("New data version %s staged (current: %s).", remote.DataVersionID, orNone(local))
		s.logger.InfoContext(ctx, "descriptor update staged",
			"version", remote.DataVersionID, "previous", local)
	case 0:
		result.note(NoteIndexUnchanged)
		sink.printf("Data version %s is current.", local)
	default:
		result.fail(IndexVersionRegression)
		sink.printf("Remote data version %s is older than the current %s. Refusing to downgrade.",
			remote.DataVersionID, local)
		s.logger.ErrorContext(ctx, "remote descriptor is older than durable one",
			"remote", remote.DataVersionID, "local", local)
	}
}

// fetch clones the index branch and reads the descriptor file.
func (s *IndexStage) fetch(ctx context.Context, p profile.Profile, result *SyncResult, sink LogSink) ([]byte, bool) {
	dir := s.settings.WorkDir
	if err := s.fs.RemoveAll(dir); err != nil {
		result.note(NoteIndexUnavailable)
		s.logger.WarnContext(ctx, "failed to clear index work directory", "dir", dir, "error", err)
		return nil, false
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	progress := git.NewProgressWriter(sink)
	defer progress.Flush()

	sink.printf("Fetching index branch %s.", s.settings.Branch)
	repo, err := s.vcs.Clone(cloneCtx, s.fs, dir, p.URL, s.settings.Branch, credentialsFor(p), progress)
	switch {
	case err == nil:
	case stderrors.Is(err, git.ErrRefNotFound):
		result.note(NoteIndexBranchAbsent)
		sink.printf("Remote has no index branch, keeping the current descriptor.")
		s.logger.InfoContext(ctx, "index branch absent", "branch", s.settings.Branch)
		return nil, false
	default:
		result.note(NoteIndexUnavailable)
		sink.printf("Index branch could not be fetched, keeping the current descriptor.")
		s.logger.WarnContext(ctx, "failed to fetch index branch",
			"branch", s.settings.Branch, "error", err,
			"auth_failed", stderrors.Is(err, git.ErrAuthFailed) || stderrors.Is(err, git.ErrAuthRequired),
			"network", stderrors.Is(err, git.ErrNetwork))
		return nil, false
	}

	if head, err := repo.Head(ctx); err == nil {
		sink.printf("Index tip %s: %s", shortHash(head.Hash), git.Summarize(head.Message))
	}

	data, err := s.fs.ReadFile(path.Join(dir, s.settings.DescriptorFile))
	switch {
	case err == nil:
		return data, true
	case stderrors.Is(err, iofs.ErrNotExist):
		result.note(NoteIndexFileAbsent)
		sink.printf("Index branch has no %s, keeping the current descriptor.", s.settings.DescriptorFile)
		s.logger.InfoContext(ctx, "descriptor file absent", "file", s.settings.DescriptorFile)
	default:
		result.note(NoteIndexUnavailable)
		s.logger.WarnContext(ctx, "failed to read remote descriptor", "error", err)
	}
	return nil, false
}

// localVersion returns the durable descriptor's id. An unreadable descriptor
// counts as absent.
func (s *IndexStage) localVersion(ctx context.Context, result *SyncResult) string {
	local, err := s.tree.Descriptor()
	if err != nil {
		result.note(NoteLocalDescriptorUnreadable)
		s.logger.WarnContext(ctx, "durable descriptor is unreadable, treating it as absent", "error", err)
		return ""
	}
	if local == nil {
		return ""
	}
	return local.DataVersionID
}

func orNone(id string) string {
	if id == "" {
		return "none"
	}
	return id
}
