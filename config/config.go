// Package config defines the settings of a reposync installation and loads
// them with viper from a config file, REPOSYNC_* environment variables and
// command-line flags.
package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/shiguang-schedule/reposync/errors"
)

// AppName names the installation's directories under the XDG base dirs.
const AppName = "reposync"

// Commit modes.
const (
	// CommitWipe deletes durable storage and rewrites it in place.
	CommitWipe = "wipe"

	// CommitSwap builds the new generation beside durable storage and
	// swaps it in by rename.
	CommitSwap = "swap"
)

// Baseline tag every legitimate fork of the official remote carries.
const (
	DefaultBaselineTag  = "lighthouse"
	DefaultBaselineHash = "eb49b7c18272c624d12198b03aabf7fc114a7106"
)

// Config is the full set of installation settings.
type Config struct {
	// DataDir holds the mirror, transient clones, durable storage, the
	// journal and the lock file.
	DataDir string `mapstructure:"data_dir"`

	// ProfilesFile lists the known remotes.
	ProfilesFile string `mapstructure:"profiles_file"`

	Layout   Layout   `mapstructure:"layout"`
	Index    Index    `mapstructure:"index"`
	Gate     Gate     `mapstructure:"gate"`
	Timeouts Timeouts `mapstructure:"timeouts"`

	// ResourceDir is the subdirectory of the mirror whose files are published.
	ResourceDir string `mapstructure:"resource_dir"`

	// Exclude lists file names or doublestar patterns never published.
	// Matching is case-insensitive.
	Exclude []string `mapstructure:"exclude"`

	// CommitMode is CommitWipe or CommitSwap.
	CommitMode string `mapstructure:"commit_mode"`

	// Journal enables the run history database.
	Journal bool `mapstructure:"journal"`

	// AuthHosts restricts profile credentials to these host patterns
	// ("*.example.com", "git.*"). Empty sends them to any http(s) host.
	AuthHosts []string `mapstructure:"auth_hosts"`
}

// Layout names the entries of the data directory.
type Layout struct {
	MirrorDir  string `mapstructure:"mirror_dir"`
	IndexDir   string `mapstructure:"index_dir"`
	StorageDir string `mapstructure:"storage_dir"`
	LockFile   string `mapstructure:"lock_file"`
	JournalDB  string `mapstructure:"journal_db"`
}

// Index configures the descriptor branch.
type Index struct {
	Branch          string `mapstructure:"branch"`
	DescriptorFile  string `mapstructure:"descriptor_file"`
	ProtocolVersion int    `mapstructure:"protocol_version"`
}

// Gate configures the authenticity check of non-official remotes.
type Gate struct {
	Enabled bool   `mapstructure:"enabled"`
	TagName string `mapstructure:"tag_name"`
	TagHash string `mapstructure:"tag_hash"`
}

// Timeouts bound each remote operation.
type Timeouts struct {
	ListRefs   time.Duration `mapstructure:"list_refs"`
	Clone      time.Duration `mapstructure:"clone"`
	IndexClone time.Duration `mapstructure:"index_clone"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		DataDir:      filepath.Join(xdg.DataHome, AppName),
		ProfilesFile: filepath.Join(xdg.ConfigHome, AppName, "profiles.yaml"),
		Layout: Layout{
			MirrorDir:  "repo",
			IndexDir:   "index_tmp",
			StorageDir: "storage",
			LockFile:   "reposync.lock",
			JournalDB:  "journal.db",
		},
		Index: Index{
			Branch:          "index",
			DescriptorFile:  "index.pb",
			ProtocolVersion: 1,
		},
		Gate: Gate{
			Enabled: true,
			TagName: DefaultBaselineTag,
			TagHash: DefaultBaselineHash,
		},
		Timeouts: Timeouts{
			ListRefs:   30 * time.Second,
			Clone:      120 * time.Second,
			IndexClone: 60 * time.Second,
		},
		ResourceDir: "resources",
		Exclude:     []string{"adapters.yaml"},
		CommitMode:  CommitWipe,
		Journal:     true,
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir is required")
	}

	names := map[string]string{
		"layout.mirror_dir":     c.Layout.MirrorDir,
		"layout.index_dir":      c.Layout.IndexDir,
		"layout.storage_dir":    c.Layout.StorageDir,
		"layout.lock_file":      c.Layout.LockFile,
		"layout.journal_db":     c.Layout.JournalDB,
		"index.branch":          c.Index.Branch,
		"index.descriptor_file": c.Index.DescriptorFile,
		"resource_dir":          c.ResourceDir,
	}
	for _, key := range slices.Sorted(maps.Keys(names)) {
		if strings.TrimSpace(names[key]) == "" {
			problems = append(problems, key+" is required")
		}
	}

	if err := c.validateLayout(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Index.ProtocolVersion < 0 {
		problems = append(problems, "index.protocol_version cannot be negative")
	}

	if c.Gate.Enabled {
		if c.Gate.TagName == "" || len(c.Gate.TagHash) != 40 {
			problems = append(problems, "gate requires tag_name and a 40 character tag_hash")
		}
	}

	for key, d := range map[string]time.Duration{
		"timeouts.list_refs":   c.Timeouts.ListRefs,
		"timeouts.clone":       c.Timeouts.Clone,
		"timeouts.index_clone": c.Timeouts.IndexClone,
	} {
		if d <= 0 {
			problems = append(problems, key+" must be positive")
		}
	}

	switch c.CommitMode {
	case CommitWipe, CommitSwap:
	default:
		problems = append(problems, fmt.Sprintf("commit_mode %q is not one of %s, %s", c.CommitMode, CommitWipe, CommitSwap))
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}

// validateLayout rejects data directory entries that would overlap, since
// the sync deletes its transient directories and rewrites storage wholesale.
// An entry naming the data directory itself overlaps everything.
func (c *Config) validateLayout() error {
	entries := []string{
		c.Layout.MirrorDir,
		c.Layout.MirrorDir + ".partial",
		c.Layout.IndexDir,
		c.Layout.StorageDir,
		c.Layout.LockFile,
		c.Layout.JournalDB,
	}
	cleaned := make([]string, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e) == "" || e == ".partial" {
			continue
		}
		ce := filepath.Clean(e)
		if filepath.IsAbs(e) || ce == ".." || strings.HasPrefix(ce, "../") {
			return fmt.Errorf("layout entry %q must be relative to data_dir", e)
		}
		if ce == "." {
			return fmt.Errorf("layout entry %q names data_dir itself", e)
		}
		cleaned[i] = ce
	}

	for i, a := range cleaned {
		for j := i + 1; j < len(cleaned); j++ {
			b := cleaned[j]
			if a == "" || b == "" {
				continue
			}
			if a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/") {
				return fmt.Errorf("layout entries %q and %q overlap", entries[i], entries[j])
			}
		}
	}
	return nil
}

// Path joins elem onto the data directory.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}
