package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shiguang-schedule/reposync/errors"
)

// List is an ordered set of profiles, as stored in a profiles file.
type List []Profile

// Find returns the profile with the given name, compared case-insensitively.
func (l List) Find(name string) (Profile, bool) {
	for _, p := range l {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// Parse decodes a profiles document. The document is either a bare list or a
// mapping with a "repositories" key; JSON is accepted since it is valid YAML.
func Parse(data []byte) (List, error) {
	var list List
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc struct {
			Repositories List `yaml:"repositories"`
		}
		if docErr := yaml.Unmarshal(data, &doc); docErr != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to decode profiles")
		}
		list = doc.Repositories
	}

	seen := make(map[string]bool, len(list))
	for i, p := range list {
		if err := p.Validate(); err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
				fmt.Sprintf("invalid profile at position %d", i),
				map[string]any{"name": p.Name})
		}
		key := strings.ToLower(p.Name)
		if p.Name != "" && seen[key] {
			return nil, errors.New(errors.CodeInvalidConfig, fmt.Sprintf("duplicate profile name %q", p.Name))
		}
		seen[key] = true
	}
	return list, nil
}

// LoadFile reads and parses the profiles file at path.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithContext(err, errors.CodeNotFound, "profiles file not found",
				map[string]any{"path": path})
		}
		return nil, errors.WrapWithContext(err, errors.CodeInternal, "failed to read profiles file",
			map[string]any{"path": path})
	}
	return Parse(data)
}
