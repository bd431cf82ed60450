package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var syncDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Ingest the latest business day's bulletin",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(true); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := newRunner(st, true).Daily(ctx)
		formatSummary(os.Stdout, sum)
		if err != nil {
			return eris.Wrap(err, "sync daily")
		}
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncDailyCmd)
}
