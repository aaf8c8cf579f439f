package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shiguang-schedule/reposync/config"
	"github.com/shiguang-schedule/reposync/errors"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	logger *slog.Logger
	level  *slog.LevelVar
	v      *viper.Viper
	cfg    *config.Config
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	a := &app{logger: logger, level: level}

	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "Synchronize versioned resource data from a git remote",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", fmt.Sprintf("config file (default %s)", config.DefaultConfigPath()))
	flags.StringP("data-dir", "d", "", "data directory")
	flags.String("profiles", "", "repository profiles file")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newSyncCmd(a),
		newProfilesCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && a.level != nil {
		a.level.Set(slog.LevelDebug)
	}

	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}

	for key, flag := range map[string]string{
		"data_dir":      "data-dir",
		"profiles_file": "profiles",
		"commit_mode":   "commit-mode",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "failed to bind flag "+flag)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.logger.Debug("configuration loaded", "file", v.ConfigFileUsed(), "data_dir", cfg.DataDir)
	return nil
}

// exitCode maps an error onto the process exit status. Failed
// synchronizations get a status per outcome so scripts can branch on it.
func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeInvalidConfig, errors.CodeNotFound:
		return 2
	case errors.CodeAuthenticityFailure:
		return 10
	case errors.CodeResourceFetchFailure:
		return 11
	case errors.CodeIndexProtocolIncompatible:
		return 12
	case errors.CodeIndexVersionRegression:
		return 13
	case errors.CodeCommitFailure:
		return 14
	case errors.CodeLocked:
		return 15
	default:
		return 1
	}
}
