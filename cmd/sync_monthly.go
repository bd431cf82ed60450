package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var syncMonthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Backfill months before the earliest stored NAV date",
	Long: `Backfills the --months months (of thirty days) that precede the earliest
NAV date in the store. With an empty store the window ends at the latest
business day. Bulletins already in the data directory are reprocessed
instead of being downloaded again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(true); err != nil {
			return err
		}

		months, _ := cmd.Flags().GetInt("months")
		if !cmd.Flags().Changed("months") {
			months = cfg.Backfill.Months
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := newRunner(st, true).Monthly(ctx, months)
		formatSummary(os.Stdout, sum)
		if err != nil {
			return eris.Wrap(err, "sync monthly")
		}
		return nil
	},
}

func init() {
	syncMonthlyCmd.Flags().Int("months", 3, "number of 30-day months to backfill")
	syncCmd.AddCommand(syncMonthlyCmd)
}
