package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	billyfs "github.com/shiguang-schedule/reposync/fs/billy"
	"github.com/shiguang-schedule/reposync/journal"
	"github.com/shiguang-schedule/reposync/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the data version held in local storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tree := storage.NewTree(billyfs.NewOSFS(a.cfg.DataDir), a.cfg.Layout.StorageDir, a.cfg.Index.DescriptorFile)

			fmt.Fprintf(out, "storage:   %s\n", a.cfg.Path(a.cfg.Layout.StorageDir))

			d, err := tree.Descriptor()
			switch {
			case err != nil:
				fmt.Fprintf(out, "version:   unreadable (%v)\n", err)
			case d == nil:
				fmt.Fprintln(out, "version:   none")
			default:
				fmt.Fprintf(out, "version:   %s (protocol %d)\n", d.DataVersionID, d.ProtocolVersion)
				if ts, err := d.Timestamp(); err == nil {
					fmt.Fprintf(out, "published: %s\n", humanize.Time(ts))
				}
			}

			files, err := tree.Resources()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "resources: %d files\n", len(files))

			if !a.cfg.Journal {
				return nil
			}
			j, err := journal.Open(a.cfg.Path(a.cfg.Layout.JournalDB))
			if err != nil {
				return err
			}
			defer j.Close()

			last, err := j.Last()
			if err != nil {
				return err
			}
			if last != nil {
				fmt.Fprintf(out, "last run:  %s %s from %s\n", last.Outcome, humanize.Time(last.Finished), last.URL)
			}
			return nil
		},
	}
}
