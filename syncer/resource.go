package syncer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shiguang-schedule/reposync/fs"
	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/profile"
)

// partialSuffix names the transient directory a fresh mirror is cloned into.
const partialSuffix = ".partial"

// ResourceSettings configure the resource mirror.
type ResourceSettings struct {
	// MirrorDir is the reusable working copy. It is created on first use,
	// reused afterwards and never deleted by a normal run.
	MirrorDir string

	// ResourceDir is the subdirectory of the mirror whose files are published.
	ResourceDir string

	// Timeout bounds each clone or fetch.
	Timeout time.Duration
}

// ResourceStage keeps the mirror identical to the remote branch and stages
// every publishable file.
//
// The mirror is not safe for concurrent use; the Engine serializes runs.
type ResourceStage struct {
	fs       fs.Filesystem
	vcs      VCS
	settings ResourceSettings
	exclude  *Excluder
	logger   *slog.Logger
}

// NewResourceStage returns a ResourceStage working inside fsys.
func NewResourceStage(fsys fs.Filesystem, vcs VCS, settings ResourceSettings, exclude *Excluder, logger *slog.Logger) *ResourceStage {
	return &ResourceStage{fs: fsys, vcs: vcs, settings: settings, exclude: exclude, logger: orDiscard(logger)}
}

// PartialDir is the transient clone directory. The Engine deletes it after
// every run.
func (s *ResourceStage) PartialDir() string {
	return s.settings.MirrorDir + partialSuffix
}

// Run updates the mirror and stages its resource files into result. On error
// nothing is staged.
func (s *ResourceStage) Run(ctx context.Context, p profile.Profile, result *SyncResult, sink LogSink) error {
	progress := git.NewProgressWriter(sink)
	defer progress.Flush()

	tip, err := s.update(ctx, p, progress, sink)
	if err != nil {
		return err
	}

	staged, err := s.stage()
	if err != nil {
		return err
	}

	result.ResourceTip = tip
	result.StagedResourceFiles = staged
	sink.printf("Staged %d resource files.", len(staged))
	s.logger.InfoContext(ctx, "resources staged", "files", len(staged), "tip", tip)
	return nil
}

// update brings the mirror to the remote tip and returns the tip hash.
func (s *ResourceStage) update(ctx context.Context, p profile.Profile, progress *git.ProgressWriter, sink LogSink) (string, error) {
	creds := credentialsFor(p)
	mirror := s.settings.MirrorDir

	isRepo, err := s.fs.Exists(path.Join(mirror, ".git"))
	if err != nil {
		return "", fmt.Errorf("inspect mirror: %w", err)
	}

	if isRepo {
		repo, err := s.vcs.Open(ctx, s.fs, mirror, creds, progress)
		switch {
		case err == nil:
			sink.printf("Local mirror exists, updating.")
			return s.fetchAndReset(ctx, repo, p, sink)
		case stderrors.Is(err, git.ErrNotRepository):
			s.logger.WarnContext(ctx, "mirror is corrupt, recloning", "dir", mirror, "error", err)
		default:
			return "", fmt.Errorf("open mirror: %w", err)
		}
	}

	sink.printf("Local mirror does not exist, cloning.")
	return s.clone(ctx, p, creds, progress, sink)
}

func (s *ResourceStage) fetchAndReset(ctx context.Context, repo Repository, p profile.Profile, sink LogSink) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	sink.printf("Fetching %s from remote.", p.Branch)
	err := repo.FetchBranch(fetchCtx, p.URL, p.Branch)
	switch {
	case err == nil:
	case stderrors.Is(err, git.ErrAlreadyUpToDate):
		sink.printf("Mirror is already up to date.")
	case stderrors.Is(err, git.ErrRefNotFound):
		sink.printf("Branch %q does not exist on the remote.", p.Branch)
		return "", fmt.Errorf("branch %q: %w", p.Branch, err)
	default:
		return "", fmt.Errorf("fetch: %w", err)
	}

	tip, err := repo.ResetHard(ctx, p.Branch)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	sink.printf("Mirror reset to %s.", shortHash(tip))
	return tip, nil
}

func (s *ResourceStage) clone(ctx context.Context, p profile.Profile, creds *Credentials, progress *git.ProgressWriter, sink LogSink) (string, error) {
	mirror := s.settings.MirrorDir
	partial := s.PartialDir()

	exists, err := s.fs.Exists(mirror)
	if err != nil {
		return "", fmt.Errorf("inspect mirror: %w", err)
	}
	if exists {
		sink.printf("Removing stale directory at the mirror path.")
		if err := s.fs.RemoveAll(mirror); err != nil {
			return "", fmt.Errorf("remove stale mirror: %w", err)
		}
	}
	if err := s.fs.RemoveAll(partial); err != nil {
		return "", fmt.Errorf("clear partial clone: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	repo, err := s.vcs.Clone(cloneCtx, s.fs, partial, p.URL, p.Branch, creds, progress)
	if err != nil {
		if stderrors.Is(err, git.ErrRefNotFound) {
			sink.printf("Branch %q does not exist on the remote.", p.Branch)
		}
		return "", fmt.Errorf("clone: %w", err)
	}

	head, err := repo.Head(ctx)
	if err != nil {
		return "", fmt.Errorf("read cloned head: %w", err)
	}

	if err := s.fs.Rename(partial, mirror); err != nil {
		return "", fmt.Errorf("move clone into place: %w", err)
	}
	sink.printf("Cloned %s at %s.", p.Branch, shortHash(head.Hash))
	return head.Hash, nil
}

// stage lists every publishable regular file under the resource directory.
func (s *ResourceStage) stage() ([]StagedFile, error) {
	root := path.Join(s.settings.MirrorDir, s.settings.ResourceDir)

	info, err := s.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("resource directory %q is missing from the mirror", s.settings.ResourceDir)
	}

	var staged []StagedFile
	err = s.fs.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel := strings.TrimPrefix(filepath.ToSlash(p), filepath.ToSlash(root)+"/")
		if s.exclude.Excluded(rel) {
			return nil
		}
		staged = append(staged, StagedFile{Source: p, Destination: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk resources: %w", err)
	}
	return staged, nil
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
