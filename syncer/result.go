package syncer

import "github.com/shiguang-schedule/reposync/descriptor"

// StagedFile records the intent to publish one file.
type StagedFile struct {
	// Source is the file's path in the resource mirror.
	Source string

	// Destination is the file's path relative to the durable resources root.
	Destination string
}

// SyncResult accumulates what the stages decided during one synchronization.
// It is created fresh per call and consumed once by the commit stage.
type SyncResult struct {
	StagedResourceFiles []StagedFile

	// StagedIndexBytes is the new descriptor, or nil when the durable one
	// is kept.
	StagedIndexBytes     []byte
	StagedIndexVersionID string

	// FatalIndexError blocks the commit. IndexFailure says why.
	FatalIndexError bool
	IndexFailure    Kind

	// Remote and LocalVersionID describe what the index stage compared.
	Remote         *descriptor.Descriptor
	LocalVersionID string

	// ResourceTip is the mirror commit the staged files come from.
	ResourceTip string

	Notes []Note
}

func (r *SyncResult) note(n Note) {
	r.Notes = append(r.Notes, n)
}

func (r *SyncResult) fail(kind Kind) {
	r.FatalIndexError = true
	r.IndexFailure = kind
}
