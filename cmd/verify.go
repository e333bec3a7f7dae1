package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/recovery"
)

// verifyReport summarizes one verify run.
type verifyReport struct {
	entries      map[logentry.EntryTypeCode]int
	transactions int
	checkPoints  int
	lastTxID     int64
	torn         int
	tornTail     bool
}

func newVerifyCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Decode every entry and check transaction boundaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, skip, err := s.scanner()
			if err != nil {
				return err
			}

			report := verifyReport{entries: make(map[logentry.EntryTypeCode]int)}
			cursor := recovery.NewTransactionCursor()
			err = scanner.Scan(cmd.Context(), func(e logentry.LogEntry) error {
				report.entries[e.Type()]++
				tx, cp, err := cursor.Offer(e)
				if err != nil {
					return err
				}
				if tx != nil {
					report.transactions++
					report.lastTxID = tx.TxID()
				}
				if cp != nil {
					report.checkPoints++
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			report.torn = cursor.Torn()
			if cursor.Pending() {
				report.torn++
				report.tornTail = true
			}

			out := cmd.OutOrStdout()
			for _, code := range []logentry.EntryTypeCode{
				logentry.TypeTxStart, logentry.TypeCommand, logentry.TypeTxCommit, logentry.TypeCheckPoint,
			} {
				fmt.Fprintf(out, "%-12s %d\n", code, report.entries[code])
			}
			fmt.Fprintf(out, "transactions %d (last tx %d)\n", report.transactions, report.lastTxID)
			fmt.Fprintf(out, "check points %d\n", report.checkPoints)
			fmt.Fprintf(out, "torn         %d (tail %t)\n", report.torn, report.tornTail)
			if skip != nil {
				fmt.Fprintf(out, "skipped      %d bytes in %d invalid entries\n", skip.Skipped(), skip.InvalidEntries())
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
}
