// Package git provides high-level Git operations through a clean facade.
// This file contains reference-related operations for listing remote refs and
// inspecting the checked out commit.
package git

import (
	"context"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// peeledSuffix marks the peeled entry of an annotated tag in a ref advertisement.
const peeledSuffix = "^{}"

// RefKind represents the type of git reference.
type RefKind int

const (
	// RefBranch indicates a branch reference (refs/heads/*).
	RefBranch RefKind = iota

	// RefTag indicates a tag reference (refs/tags/*).
	RefTag

	// RefOther indicates any other type of reference (HEAD, pull requests, notes).
	RefOther
)

// String returns a human-readable string representation of the RefKind.
func (k RefKind) String() string {
	switch k {
	case RefBranch:
		return "branch"
	case RefTag:
		return "tag"
	case RefOther:
		return "other"
	default:
		return "unknown"
	}
}

// RemoteRef is one entry of a remote's ref advertisement.
type RemoteRef struct {
	// Kind classifies the reference.
	Kind RefKind

	// Name is the short reference name (e.g. "main", "v1.0.0").
	Name string

	// Hash is the object the reference points at. For annotated tags this is
	// the tag object, not the commit.
	Hash string

	// Peeled is the commit an annotated tag resolves to. Empty for branches
	// and lightweight tags.
	Peeled string
}

// Target returns the commit hash the reference ultimately points at.
func (r RemoteRef) Target() string {
	if r.Peeled != "" {
		return r.Peeled
	}
	return r.Hash
}

// ListRemote lists the references advertised by remoteURL without cloning
// anything. Annotated tags are reported once, with Peeled set to the tagged
// commit. Results are sorted by kind, then name.
//
// Context timeout/cancellation is honored during the operation.
func ListRemote(ctx context.Context, remoteURL string, auth AuthProvider) ([]RemoteRef, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: DefaultRemoteName,
		URLs: []string{remoteURL},
	})

	listOpts := &git.ListOptions{
		PeelingOption: git.AppendPeeled,
	}

	authMethod, err := resolveAuth(auth, remoteURL)
	if err != nil {
		return nil, err
	}
	listOpts.Auth = authMethod

	advertised, err := remote.ListContext(ctx, listOpts)
	if err != nil {
		return nil, Classify(err, "failed to list remote references")
	}

	return collectRemoteRefs(advertised), nil
}

// RemoteTags is ListRemote restricted to tags that pass every filter.
func RemoteTags(ctx context.Context, remoteURL string, auth AuthProvider, filters ...TagFilter) ([]RemoteRef, error) {
	refs, err := ListRemote(ctx, remoteURL, auth)
	if err != nil {
		return nil, err
	}

	var tags []RemoteRef
	for _, ref := range refs {
		if ref.Kind == RefTag && shouldIncludeTag(ref, filters) {
			tags = append(tags, ref)
		}
	}
	return tags, nil
}

// collectRemoteRefs folds peeled entries into their tags and classifies each ref.
func collectRemoteRefs(advertised []*plumbing.Reference) []RemoteRef {
	byName := make(map[plumbing.ReferenceName]*RemoteRef)
	peeled := make(map[plumbing.ReferenceName]string)

	for _, ref := range advertised {
		if ref.Type() != plumbing.HashReference {
			continue // symbolic HEAD
		}

		name := ref.Name()
		if base, ok := strings.CutSuffix(name.String(), peeledSuffix); ok {
			peeled[plumbing.ReferenceName(base)] = ref.Hash().String()
			continue
		}

		byName[name] = &RemoteRef{
			Kind: classifyRefName(name),
			Name: name.Short(),
			Hash: ref.Hash().String(),
		}
	}

	refs := make([]RemoteRef, 0, len(byName))
	for name, ref := range byName {
		if commit, ok := peeled[name]; ok && commit != ref.Hash {
			ref.Peeled = commit
		}
		refs = append(refs, *ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Name < refs[j].Name
	})

	return refs
}

func classifyRefName(name plumbing.ReferenceName) RefKind {
	switch {
	case name.IsBranch():
		return RefBranch
	case name.IsTag():
		return RefTag
	default:
		return RefOther
	}
}

// CommitInfo describes the commit HEAD points at.
type CommitInfo struct {
	// Hash is the full SHA-1 of the commit.
	Hash string

	// Message is the full commit message.
	Message string
}

// Head returns the commit currently checked out.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) Head(ctx context.Context) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(err, "context cancelled")
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, Classify(err, "failed to get HEAD reference")
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, WrapError(err, "failed to read HEAD commit")
	}

	return &CommitInfo{
		Hash:    commit.Hash.String(),
		Message: commit.Message,
	}, nil
}
