package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shiguang-schedule/reposync/errors"
	"github.com/shiguang-schedule/reposync/journal"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent synchronizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Journal {
				return errors.New(errors.CodeInvalidConfig, "the journal is disabled")
			}

			j, err := journal.Open(a.cfg.Path(a.cfg.Layout.JournalDB))
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no synchronizations recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tOUTCOME\tVERSION\tFILES\tTOOK\tREMOTE")
			for _, e := range entries {
				remote := e.URL
				if e.Profile != "" {
					remote = e.Profile
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					humanize.Time(e.Finished), e.Outcome, orDash(e.VersionID), e.Files,
					e.Duration().Round(time.Millisecond), remote)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 for all")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
