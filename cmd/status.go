package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/client"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

func newStatusCmd(s *settings) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running txlog server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = s.cfg.Server.HTTPAddr
			}
			if strings.HasPrefix(addr, ":") {
				addr = "localhost" + addr
			}
			c := client.NewClient(addr, client.DefaultRetryConfig())
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			healthy, err := c.Healthy(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "server   %s (healthy %t)\n", addr, healthy)

			files, err := c.Logs(ctx)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(out, "file     %s size=%d last_tx=%d\n", f.Path, f.Size, f.Header.LastCommittedTxID)
			}

			report, err := c.LastRecovery(ctx)
			switch {
			case txErr.IsNotFound(err):
				fmt.Fprintln(out, "recovery none")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "recovery last_tx=%d applied=%d torn=%d nodes=%d\n",
					report.Result.LastCommittedTxID, report.Result.Applied, report.Result.Torn, report.Store.Nodes)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server address (defaults to server.http_addr)")
	return cmd
}
