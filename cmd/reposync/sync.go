package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shiguang-schedule/reposync/errors"
	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
	"github.com/shiguang-schedule/reposync/journal"
	"github.com/shiguang-schedule/reposync/profile"
	"github.com/shiguang-schedule/reposync/syncer"
)

type syncFlags struct {
	url      string
	branch   string
	kind     string
	username string
	password string
	quiet    bool
}

func newSyncCmd(a *app) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync [profile]",
		Short: "Synchronize from a named profile or from --url",
		Long: `Synchronize resources and the version descriptor from a git remote.

The remote is either a profile from the profiles file, named as the only
argument, or given directly with --url and --branch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProfile(args, f)
			if err != nil {
				return err
			}
			return a.runSync(cmd, p, f.quiet)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "", "remote url")
	flags.StringVar(&f.branch, "branch", "main", "remote branch")
	flags.StringVar(&f.kind, "kind", string(profile.Custom), "repository kind (official, public-fork, private, custom)")
	flags.StringVar(&f.username, "username", "", "remote username")
	flags.StringVar(&f.password, "password", "", "remote password or access token")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "only print the outcome")
	flags.String("commit-mode", "", "commit mode (wipe or swap)")
	return cmd
}

func (a *app) resolveProfile(args []string, f syncFlags) (profile.Profile, error) {
	if len(args) == 1 {
		if f.url != "" {
			return profile.Profile{}, errors.New(errors.CodeInvalidInput, "give either a profile name or --url, not both")
		}
		list, err := profile.LoadFile(a.cfg.ProfilesFile)
		if err != nil {
			return profile.Profile{}, err
		}
		p, ok := list.Find(args[0])
		if !ok {
			return profile.Profile{}, errors.New(errors.CodeNotFound,
				fmt.Sprintf("profile %q not found in %s", args[0], a.cfg.ProfilesFile))
		}
		return p, nil
	}

	if f.url == "" {
		return profile.Profile{}, errors.New(errors.CodeInvalidInput, "a profile name or --url is required")
	}
	kind, err := profile.ParseKind(f.kind)
	if err != nil {
		return profile.Profile{}, err
	}

	p := profile.Profile{Kind: kind, URL: f.url, Branch: f.branch}
	if f.username != "" || f.password != "" {
		p.Credentials = &profile.Credentials{Username: f.username, Password: f.password}
	}
	return p, p.Validate()
}

func (a *app) runSync(cmd *cobra.Command, p profile.Profile, quiet bool) error {
	out := cmd.OutOrStdout()

	opts := []syncer.Option{
		syncer.WithLogger(a.logger),
		syncer.WithLockFile(a.cfg.Path(a.cfg.Layout.LockFile)),
	}
	if a.cfg.Journal {
		opts = append(opts, syncer.WithRecorder(journal.NewRecorder(a.cfg.Path(a.cfg.Layout.JournalDB))))
	}

	engine, err := syncer.New(billyfs.NewOSFS(a.cfg.DataDir), a.cfg, opts...)
	if err != nil {
		return err
	}

	var sink syncer.LogSink
	if !quiet {
		sink = func(line string) { fmt.Fprintln(out, line) }
	}

	outcome, err := engine.Synchronize(cmd.Context(), p, sink)
	if outcome != nil {
		printOutcome(out, outcome)
	}
	return err
}

func printOutcome(w io.Writer, o *syncer.Outcome) {
	fmt.Fprintf(w, "\n%s", o.Kind)
	if o.VersionID != "" {
		fmt.Fprintf(w, "  version %s", o.VersionID)
		if o.PreviousVersionID != "" && o.PreviousVersionID != o.VersionID {
			fmt.Fprintf(w, " (was %s)", o.PreviousVersionID)
		}
	}
	fmt.Fprintln(w)

	if o.Files > 0 || o.FailedFiles > 0 {
		fmt.Fprintf(w, "  %d files, %s", o.Files, humanize.Bytes(uint64(o.Bytes)))
		if o.FailedFiles > 0 {
			fmt.Fprintf(w, ", %d failed", o.FailedFiles)
		}
		fmt.Fprintln(w)
	}
	if len(o.Notes) > 0 {
		notes := make([]string, len(o.Notes))
		for i, n := range o.Notes {
			notes[i] = string(n)
		}
		fmt.Fprintf(w, "  notes: %s\n", strings.Join(notes, ", "))
	}
	fmt.Fprintf(w, "  run %s, %s\n", o.RunID, o.Finished.Sub(o.Started).Round(time.Millisecond))
}
