package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/recovery"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

func newRecoverCmd(s *settings) *cobra.Command {
	var fromCheckPoint bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Replay committed transactions into an in-memory store and report the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, _, err := s.scanner()
			if err != nil {
				return err
			}

			opts := []recovery.Option{recovery.WithLogger(s.log.Module("recovery").Logger)}
			if !fromCheckPoint {
				opts = append(opts, recovery.FromBeginning())
			}

			store := storage.NewStore()
			result, err := recovery.Recover(cmd.Context(), scanner, store, opts...)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"result": result,
				"store":  store.GetMetrics(),
			})
		},
	}

	cmd.Flags().BoolVar(&fromCheckPoint, "from-checkpoint", false, "Only replay transactions after the last check point")
	return cmd
}
