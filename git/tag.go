// Package git provides a high-level Go wrapper for go-git operations.
// This file contains tag filters applied to remote ref listings.
package git

import (
	"strings"
)

// TagFilter is a predicate function for filtering tags.
// It returns true if the tag should be included in the results.
// Filters are applied progressively - if any filter returns false, the tag is excluded.
type TagFilter func(ref RemoteRef) bool

// shouldIncludeTag checks if a tag passes all filters
func shouldIncludeTag(ref RemoteRef, filters []TagFilter) bool {
	for _, filter := range filters {
		if filter != nil && !filter(ref) {
			return false
		}
	}
	return true
}

// TagNameFilter returns a filter that matches tags named exactly name.
func TagNameFilter(name string) TagFilter {
	return func(ref RemoteRef) bool {
		return ref.Name == name
	}
}

// TagTargetFilter returns a filter that matches tags whose target commit is
// exactly hash. Comparison is case-insensitive on the hex digits.
func TagTargetFilter(hash string) TagFilter {
	return func(ref RemoteRef) bool {
		return strings.EqualFold(ref.Target(), hash)
	}
}
