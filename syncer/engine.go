// Package syncer replicates versioned content from a git remote into local
// durable storage.
//
// A synchronization runs four stages in order, stopping at the first fatal
// one:
//
//	Gate      non-official remotes must carry the baseline tag
//	Resource  update the reusable mirror and stage its resource files
//	Index     fetch the descriptor branch and decide whether to update
//	Commit    rewrite durable storage from what was staged
//
// Every failure before the commit leaves durable storage untouched.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/shiguang-schedule/reposync/config"
	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/errors"
	"github.com/shiguang-schedule/reposync/fs"
	"github.com/shiguang-schedule/reposync/journal"
	"github.com/shiguang-schedule/reposync/profile"
	"github.com/shiguang-schedule/reposync/storage"
)

// Engine owns the resource mirror and durable storage of one installation.
// Synchronize calls on one Engine are serialized; WithLockFile extends that
// to every process sharing the data directory.
type Engine struct {
	fs   fs.Filesystem
	cfg  config.Config
	tree *storage.Tree

	gate      *Gate
	resources *ResourceStage
	index     *IndexStage
	commit    *CommitStage

	logger   *slog.Logger
	lock     *flock.Flock
	recorder Recorder

	mu sync.Mutex
}

// New returns an Engine working inside fsys, which must be rooted at the
// data directory. cfg is validated.
func New(fsys fs.Filesystem, cfg *config.Config, opts ...Option) (*Engine, error) {
	if fsys == nil {
		return nil, errors.New(errors.CodeInvalidInput, "filesystem is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.CodeInvalidInput, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.vcs == nil {
		options.vcs = GitVCS{AuthHosts: cfg.AuthHosts}
	}
	logger := orDiscard(options.logger)

	exclude, err := NewExcluder(cfg.Exclude)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid exclusion list")
	}

	tree := storage.NewTree(fsys, cfg.Layout.StorageDir, cfg.Index.DescriptorFile)

	e := &Engine{
		fs:   fsys,
		cfg:  *cfg,
		tree: tree,
		gate: NewGate(options.vcs, GateSettings{
			Enabled: cfg.Gate.Enabled,
			TagName: cfg.Gate.TagName,
			TagHash: cfg.Gate.TagHash,
			Timeout: cfg.Timeouts.ListRefs,
		}, logger),
		resources: NewResourceStage(fsys, options.vcs, ResourceSettings{
			MirrorDir:   cfg.Layout.MirrorDir,
			ResourceDir: cfg.ResourceDir,
			Timeout:     cfg.Timeouts.Clone,
		}, exclude, logger),
		index: NewIndexStage(fsys, options.vcs, tree, IndexSettings{
			WorkDir:         cfg.Layout.IndexDir,
			Branch:          cfg.Index.Branch,
			DescriptorFile:  cfg.Index.DescriptorFile,
			ProtocolVersion: cfg.Index.ProtocolVersion,
			Timeout:         cfg.Timeouts.IndexClone,
		}, logger),
		commit:   NewCommitStage(tree, cfg.CommitMode, logger),
		logger:   logger,
		recorder: options.recorder,
	}

	if options.lockFile != "" {
		e.lock = flock.New(options.lockFile)
	}
	return e, nil
}

// Storage returns the durable storage tree.
func (e *Engine) Storage() *storage.Tree {
	return e.tree
}

// Current returns the durable descriptor, or nil when there is none.
func (e *Engine) Current() (*descriptor.Descriptor, error) {
	return e.tree.Descriptor()
}

// Synchronize runs one synchronization of p. sink receives progress lines
// and may be nil.
//
// The returned Outcome is never nil once p is valid. The error is nil only
// for Committed; otherwise it carries the Outcome kind's error code.
func (e *Engine) Synchronize(ctx context.Context, p profile.Profile, sink LogSink) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := &Outcome{
		RunID:   uuid.NewString(),
		Profile: p.Name,
		Started: time.Now(),
	}
	logger := e.logger.With("run_id", out.RunID, "profile", p.String())

	release, err := e.acquire()
	if err != nil {
		sink.printf("Another synchronization is running.")
		return e.finish(ctx, logger, p, out, Locked, err)
	}
	defer release()

	defer e.cleanup(ctx, logger)

	out.PreviousVersionID = e.durableVersion()
	out.VersionID = out.PreviousVersionID

	logger.InfoContext(ctx, "synchronization started", "url", p.URL, "branch", p.Branch)

	if !p.IsOfficial() {
		if !e.gate.Enabled() {
			out.Notes = append(out.Notes, NoteGateSkipped)
			sink.printf("Authenticity check skipped by configuration.")
		} else {
			sink.printf("Verifying remote against the baseline tag.")
		}
		if !e.gate.Check(ctx, p) {
			sink.printf("Remote failed the authenticity check or could not be reached.")
			if p.Kind == profile.PrivateFork {
				sink.printf("Check that the access token is valid and has read permission.")
			}
			return e.finish(ctx, logger, p, out, AuthenticityFailure,
				fmt.Errorf("remote %s does not carry baseline tag %s", p.URL, e.cfg.Gate.TagName))
		}
		if e.gate.Enabled() {
			sink.printf("Baseline tag verified.")
		}
	}

	result := &SyncResult{}

	if err := e.resources.Run(ctx, p, result, sink); err != nil {
		sink.printf("Resource update failed: %v", err)
		return e.finish(ctx, logger, p, out, ResourceFetchFailure, err)
	}

	e.index.Run(ctx, p, result, sink)
	out.Notes = append(out.Notes, result.Notes...)
	if result.FatalIndexError {
		return e.finish(ctx, logger, p, out, result.IndexFailure, e.indexError(result))
	}

	report, err := e.commit.Run(ctx, result, sink)
	if report != nil {
		out.Files = report.Files
		out.Bytes = report.Bytes
		out.FailedFiles = report.FailedFiles
		out.VersionID = report.VersionID
		if report.Restored {
			out.Notes = append(out.Notes, NoteDescriptorRestored)
		}
	}
	if err != nil {
		sink.printf("Writing local data failed: %v", err)
		out.VersionID = e.durableVersion()
		return e.finish(ctx, logger, p, out, CommitFailure, err)
	}

	sink.printf("Synchronization complete.")
	return e.finish(ctx, logger, p, out, Committed, nil)
}

// durableVersion returns the version durable storage currently holds.
func (e *Engine) durableVersion() string {
	d, err := e.tree.Descriptor()
	if err != nil || d == nil {
		return ""
	}
	return d.DataVersionID
}

func (e *Engine) indexError(result *SyncResult) error {
	remote := "unknown"
	if result.Remote != nil {
		remote = fmt.Sprintf("protocol %d, version %s", result.Remote.ProtocolVersion, result.Remote.DataVersionID)
	}
	switch result.IndexFailure {
	case IndexProtocolIncompatible:
		return fmt.Errorf("remote descriptor (%s) needs a client supporting a newer protocol than %d",
			remote, e.cfg.Index.ProtocolVersion)
	default:
		return fmt.Errorf("remote descriptor (%s) is older than local version %s",
			remote, result.LocalVersionID)
	}
}

// acquire takes the installation lock, if one is configured.
func (e *Engine) acquire() (func(), error) {
	if e.lock == nil {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(e.lock.Path()), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	locked, err := e.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", e.lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s is held by another process", e.lock.Path())
	}
	return func() {
		if err := e.lock.Unlock(); err != nil {
			e.logger.Warn("failed to release lock", "path", e.lock.Path(), "error", err)
		}
	}, nil
}

// cleanup deletes the transient clone directories. The mirror is kept.
func (e *Engine) cleanup(ctx context.Context, logger *slog.Logger) {
	for _, dir := range []string{e.cfg.Layout.IndexDir, e.resources.PartialDir()} {
		if err := e.fs.RemoveAll(dir); err != nil {
			logger.WarnContext(ctx, "failed to remove transient directory", "dir", dir, "error", err)
		}
	}
}

// finish stamps the outcome, logs and records it, and builds the error.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, p profile.Profile, out *Outcome, kind Kind, cause error) (*Outcome, error) {
	out.Kind = kind
	out.Finished = time.Now()

	var err error
	if kind != Committed {
		err = errors.WrapWithContext(cause, kind.Code(), string(kind), map[string]any{
			"run_id":  out.RunID,
			"profile": p.Name,
		})
		if err == nil {
			err = errors.New(kind.Code(), string(kind))
		}
		out.Err = err
	}

	attrs := []any{
		"outcome", kind,
		"version", out.VersionID,
		"files", out.Files,
		"duration", out.Finished.Sub(out.Started),
	}
	if err != nil {
		logger.ErrorContext(ctx, "synchronization failed", append(attrs, "error", err)...)
	} else {
		logger.InfoContext(ctx, "synchronization finished", attrs...)
	}

	if e.recorder != nil {
		if recErr := e.recorder.Record(journalEntry(p, out, e.cfg.CommitMode)); recErr != nil {
			logger.WarnContext(ctx, "failed to record outcome", "error", recErr)
		}
	}

	return out, err
}

func journalEntry(p profile.Profile, out *Outcome, mode string) journal.Entry {
	notes := make([]string, len(out.Notes))
	for i, n := range out.Notes {
		notes[i] = string(n)
	}

	entry := journal.Entry{
		RunID:      out.RunID,
		Profile:    p.Name,
		URL:        p.URL,
		Branch:     p.Branch,
		Started:    out.Started,
		Finished:   out.Finished,
		Outcome:    string(out.Kind),
		Code:       string(out.Kind.Code()),
		VersionID:  out.VersionID,
		Previous:   out.PreviousVersionID,
		Files:      out.Files,
		Bytes:      out.Bytes,
		Notes:      notes,
		CommitMode: mode,
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	return entry
}
