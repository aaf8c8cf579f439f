package syncer

import (
	"time"

	"github.com/shiguang-schedule/reposync/errors"
)

// Kind is the machine-readable result of a synchronization.
type Kind string

const (
	// Committed means a new generation was written to durable storage.
	Committed Kind = "Committed"

	// AuthenticityFailure means a non-official remote failed the baseline
	// tag check. Nothing was fetched.
	AuthenticityFailure Kind = "AuthenticityFailure"

	// ResourceFetchFailure means the resource mirror could not be brought up
	// to date. Nothing was committed.
	ResourceFetchFailure Kind = "ResourceFetchFailure"

	// IndexProtocolIncompatible means the remote descriptor needs a newer
	// client. Nothing was committed, not even the fetched resources.
	IndexProtocolIncompatible Kind = "IndexProtocolIncompatible"

	// IndexVersionRegression means the remote descriptor is older than the
	// durable one. Nothing was committed.
	IndexVersionRegression Kind = "IndexVersionRegression"

	// CommitFailure means durable storage may be partially written.
	CommitFailure Kind = "CommitFailure"

	// Locked means another synchronization holds the installation lock.
	Locked Kind = "Locked"
)

// Code maps the kind onto its error code. Committed has none.
func (k Kind) Code() errors.ErrorCode {
	switch k {
	case Committed:
		return ""
	case AuthenticityFailure:
		return errors.CodeAuthenticityFailure
	case ResourceFetchFailure:
		return errors.CodeResourceFetchFailure
	case IndexProtocolIncompatible:
		return errors.CodeIndexProtocolIncompatible
	case IndexVersionRegression:
		return errors.CodeIndexVersionRegression
	case CommitFailure:
		return errors.CodeCommitFailure
	case Locked:
		return errors.CodeLocked
	default:
		return errors.CodeUnknown
	}
}

// Note is a non-fatal observation made during a synchronization.
type Note string

const (
	// NoteGateSkipped: the authenticity check is disabled by configuration.
	NoteGateSkipped Note = "AuthenticityCheckSkipped"

	// NoteIndexBranchAbsent: the remote has no index branch.
	NoteIndexBranchAbsent Note = "IndexBranchAbsent"

	// NoteIndexFileAbsent: the index branch has no descriptor file.
	NoteIndexFileAbsent Note = "IndexFileAbsent"

	// NoteIndexUnavailable: the index could not be fetched or parsed.
	NoteIndexUnavailable Note = "IndexUnavailable"

	// NoteIndexUnchanged: the remote descriptor equals the durable one.
	NoteIndexUnchanged Note = "IndexUnchanged"

	// NoteLocalDescriptorUnreadable: the durable descriptor did not parse and
	// was treated as absent.
	NoteLocalDescriptorUnreadable Note = "LocalDescriptorUnreadable"

	// NoteDescriptorRestored: the durable descriptor was rewritten unchanged.
	NoteDescriptorRestored Note = "DescriptorRestored"
)

// Outcome describes one synchronization.
type Outcome struct {
	RunID   string
	Kind    Kind
	Profile string

	Started  time.Time
	Finished time.Time

	// VersionID is the descriptor version durable storage holds afterwards.
	// PreviousVersionID is the one it held before.
	VersionID         string
	PreviousVersionID string

	// Files and Bytes count what the commit wrote; FailedFiles counts copy
	// failures.
	Files       int
	Bytes       int64
	FailedFiles int

	Notes []Note

	// Err is the failure cause for every kind but Committed.
	Err error
}

// OK reports whether a new generation was committed.
func (o *Outcome) OK() bool {
	return o != nil && o.Kind == Committed
}

// Has reports whether n was noted.
func (o *Outcome) Has(n Note) bool {
	for _, got := range o.Notes {
		if got == n {
			return true
		}
	}
	return false
}
