package syncer

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Excluder decides which resource files are never published.
//
// Patterns are matched case-insensitively. A pattern without a slash matches
// a file's base name at any depth ("adapters.yaml", "*.tmp"); a pattern with
// a slash matches the whole path relative to the resource root
// ("drafts/**").
type Excluder struct {
	patterns []string
}

// NewExcluder validates and compiles patterns.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclusion pattern %q", p)
		}
		e.patterns = append(e.patterns, p)
	}
	return e, nil
}

// Excluded reports whether rel, a slash-separated path relative to the
// resource root, must not be published.
func (e *Excluder) Excluded(rel string) bool {
	rel = strings.ToLower(strings.TrimPrefix(rel, "/"))
	base := path.Base(rel)

	for _, p := range e.patterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
