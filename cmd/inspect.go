package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
)

func newInspectCmd(s *settings) *cobra.Command {
	var (
		version int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the entries of the transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, _, err := s.scanner()
			if err != nil {
				return err
			}

			versions := []int64{version}
			if version < 0 {
				if versions, err = scanner.LogFiles().Versions(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			printed := 0
			for _, v := range versions {
				info, err := scanner.LogFiles().Describe(v)
				if err != nil {
					return err
				}
				if info.Incomplete {
					fmt.Fprintf(out, "== %s incomplete header size=%d\n", logfile.FileName(v), info.Size)
					continue
				}
				fmt.Fprintf(out, "== %s %s size=%d\n", logfile.FileName(v), info.Header, info.Size)

				_, err = scanner.ScanVersion(cmd.Context(), v, func(e logentry.LogEntry) error {
					if limit > 0 && printed >= limit {
						return logfile.ErrStopScan
					}
					fmt.Fprintf(out, "%-8s %s\n", e.Version(), e)
					printed++
					return nil
				})
				if err != nil {
					return err
				}
				if limit > 0 && printed >= limit {
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&version, "version", -1, "Only inspect this log version")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many entries (0 prints all)")
	return cmd
}
