package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/shiguang-schedule/reposync/config"
	"github.com/shiguang-schedule/reposync/descriptor"
	"github.com/shiguang-schedule/reposync/errors"
	"github.com/shiguang-schedule/reposync/storage"
)

// CommitReport summarizes what a commit wrote.
type CommitReport struct {
	Files       int
	Bytes       int64
	FailedFiles int

	// VersionID is the descriptor version left in durable storage.
	VersionID string

	// Restored is set when the previous descriptor was rewritten unchanged.
	Restored bool
}

// CommitStage replaces durable storage with a staged generation. Resources
// and descriptor are always written together, even when only one changed.
type CommitStage struct {
	tree   *storage.Tree
	mode   string
	logger *slog.Logger
}

// NewCommitStage returns a CommitStage writing tree in mode (config.CommitWipe
// or config.CommitSwap).
func NewCommitStage(tree *storage.Tree, mode string, logger *slog.Logger) *CommitStage {
	if mode == "" {
		mode = config.CommitWipe
	}
	return &CommitStage{tree: tree, mode: mode, logger: orDiscard(logger)}
}

// Run writes result into durable storage.
//
// In wipe mode the storage root is deleted and rewritten in place; a crash
// part way leaves it incomplete until the next successful run, and failed
// file copies are not rolled back. In swap mode the generation is built
// beside the root and renamed into place, so a failure leaves the previous
// generation untouched.
func (c *CommitStage) Run(ctx context.Context, result *SyncResult, sink LogSink) (*CommitReport, error) {
	backup, err := c.tree.ReadDescriptor()
	if err != nil {
		return nil, err
	}

	if c.mode == config.CommitSwap {
		return c.swap(ctx, result, backup, sink)
	}
	return c.wipe(ctx, result, backup, sink)
}

func (c *CommitStage) wipe(ctx context.Context, result *SyncResult, backup []byte, sink LogSink) (*CommitReport, error) {
	sink.printf("Replacing local data.")
	if err := c.tree.Reset(); err != nil {
		return nil, err
	}

	report := c.copyAll(ctx, c.tree, result, sink)

	if err := c.writeDescriptor(c.tree, result, backup, report); err != nil {
		return report, err
	}

	if report.FailedFiles > 0 {
		return report, errors.New(errors.CodeCommitFailure,
			fmt.Sprintf("%d of %d resource files could not be written", report.FailedFiles, len(result.StagedResourceFiles)))
	}

	c.done(ctx, report, sink)
	return report, nil
}

func (c *CommitStage) swap(ctx context.Context, result *SyncResult, backup []byte, sink LogSink) (*CommitReport, error) {
	next := c.tree.Sibling("next")

	sink.printf("Building new local data generation.")
	if err := next.Reset(); err != nil {
		return nil, err
	}

	discard := func() {
		if err := next.Remove(); err != nil {
			c.logger.WarnContext(ctx, "failed to remove unfinished generation", "dir", next.Root(), "error", err)
		}
	}

	report := c.copyAll(ctx, next, result, sink)
	if report.FailedFiles > 0 {
		discard()
		return report, errors.New(errors.CodeCommitFailure,
			fmt.Sprintf("%d of %d resource files could not be written; previous generation kept",
				report.FailedFiles, len(result.StagedResourceFiles)))
	}

	if err := c.writeDescriptor(next, result, backup, report); err != nil {
		discard()
		return report, err
	}

	if err := c.tree.Replace(next); err != nil {
		discard()
		return report, err
	}

	c.done(ctx, report, sink)
	return report, nil
}

// copyAll copies every staged file into dst, logging and counting failures.
func (c *CommitStage) copyAll(ctx context.Context, dst *storage.Tree, result *SyncResult, sink LogSink) *CommitReport {
	report := &CommitReport{}
	for _, f := range result.StagedResourceFiles {
		n, err := dst.CopyFile(f.Source, dst.ResourcePath(f.Destination))
		if err != nil {
			report.FailedFiles++
			sink.printf("Failed to write %s.", f.Destination)
			c.logger.ErrorContext(ctx, "failed to copy resource", "file", f.Destination, "error", err)
			continue
		}
		report.Files++
		report.Bytes += n
	}
	return report
}

// writeDescriptor writes the staged descriptor, or restores backup, or leaves
// the descriptor absent when there is neither.
func (c *CommitStage) writeDescriptor(dst *storage.Tree, result *SyncResult, backup []byte, report *CommitReport) error {
	switch {
	case result.StagedIndexBytes != nil:
		if err := dst.WriteDescriptor(result.StagedIndexBytes); err != nil {
			return err
		}
		report.VersionID = result.StagedIndexVersionID
	case len(backup) > 0:
		if err := dst.WriteDescriptor(backup); err != nil {
			return err
		}
		report.Restored = true
		if d, err := descriptor.Parse(backup); err == nil {
			report.VersionID = d.DataVersionID
		}
	}
	return nil
}

func (c *CommitStage) done(ctx context.Context, report *CommitReport, sink LogSink) {
	sink.printf("Wrote %d files (%s).", report.Files, humanize.Bytes(uint64(report.Bytes)))
	c.logger.InfoContext(ctx, "generation committed",
		"files", report.Files, "bytes", report.Bytes, "version", report.VersionID, "mode", c.mode)
}
