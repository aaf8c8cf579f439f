package syncer

import (
	"log/slog"

	"github.com/shiguang-schedule/reposync/journal"
)

// Recorder stores the outcome of every run.
type Recorder interface {
	Record(entry journal.Entry) error
}

// engineOptions holds optional Engine configuration.
type engineOptions struct {
	logger   *slog.Logger
	vcs      VCS
	lockFile string
	recorder Recorder
}

// Option is a functional option for configuring the Engine.
type Option func(*engineOptions)

// WithLogger configures structured logging.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *engineOptions) {
		opts.logger = logger
	}
}

// WithVCS replaces the git-backed version-control capability.
func WithVCS(vcs VCS) Option {
	return func(opts *engineOptions) {
		opts.vcs = vcs
	}
}

// WithLockFile serializes synchronizations across processes with an
// advisory lock on path. Without it only calls on the same Engine are
// serialized.
func WithLockFile(path string) Option {
	return func(opts *engineOptions) {
		opts.lockFile = path
	}
}

// WithRecorder records every outcome, typically into a journal.Journal.
func WithRecorder(r Recorder) Option {
	return func(opts *engineOptions) {
		opts.recorder = r
	}
}

// defaultOptions returns the default configuration options.
func defaultOptions() *engineOptions {
	return &engineOptions{}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
