package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/shiguang-schedule/reposync/errors"
)

// EnvPrefix prefixes every environment override, e.g. REPOSYNC_DATA_DIR or
// REPOSYNC_GATE_ENABLED.
const EnvPrefix = "REPOSYNC"

// DefaultConfigPath is where the config file is looked up when none is given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// NewViper returns a viper instance with every default registered and
// environment overrides enabled. If configFile is empty, DefaultConfigPath is
// read when it exists; an explicitly named file must exist.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigPath()
	}
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := stderrors.Is(err, os.ErrNotExist) || stderrors.As(err, &notFound)
		if explicit || !missing {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to read config file",
				map[string]any{"path": configFile})
		}
	}

	return v, nil
}

// SetDefaults registers every key of Default with v. Registering each key is
// also what lets AutomaticEnv override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("profiles_file", d.ProfilesFile)

	v.SetDefault("layout.mirror_dir", d.Layout.MirrorDir)
	v.SetDefault("layout.index_dir", d.Layout.IndexDir)
	v.SetDefault("layout.storage_dir", d.Layout.StorageDir)
	v.SetDefault("layout.lock_file", d.Layout.LockFile)
	v.SetDefault("layout.journal_db", d.Layout.JournalDB)

	v.SetDefault("index.branch", d.Index.Branch)
	v.SetDefault("index.descriptor_file", d.Index.DescriptorFile)
	v.SetDefault("index.protocol_version", d.Index.ProtocolVersion)

	v.SetDefault("gate.enabled", d.Gate.Enabled)
	v.SetDefault("gate.tag_name", d.Gate.TagName)
	v.SetDefault("gate.tag_hash", d.Gate.TagHash)

	v.SetDefault("timeouts.list_refs", d.Timeouts.ListRefs)
	v.SetDefault("timeouts.clone", d.Timeouts.Clone)
	v.SetDefault("timeouts.index_clone", d.Timeouts.IndexClone)

	v.SetDefault("resource_dir", d.ResourceDir)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("commit_mode", d.CommitMode)
	v.SetDefault("journal", d.Journal)
	v.SetDefault("auth_hosts", d.AuthHosts)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to decode configuration")
	}

	cfg.CommitMode = strings.ToLower(strings.TrimSpace(cfg.CommitMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
