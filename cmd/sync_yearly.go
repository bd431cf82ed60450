package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var syncYearlyCmd = &cobra.Command{
	Use:   "yearly",
	Short: "Download missing bulletins for the last N years",
	Long: `Downloads every weekday bulletin for the last --years years that is not
already in the data directory, then ingests the new files. Use
--download-only to skip ingestion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(true); err != nil {
			return err
		}

		years, _ := cmd.Flags().GetInt("years")
		if !cmd.Flags().Changed("years") {
			years = cfg.Backfill.Years
		}
		downloadOnly, _ := cmd.Flags().GetBool("download-only")
		if !cmd.Flags().Changed("download-only") {
			downloadOnly = cfg.Backfill.DownloadOnly
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := newRunner(st, true).Yearly(ctx, years, downloadOnly)
		formatSummary(os.Stdout, sum)
		if err != nil {
			return eris.Wrap(err, "sync yearly")
		}
		return nil
	},
}

func init() {
	syncYearlyCmd.Flags().Int("years", 15, "number of 365-day years to cover")
	syncYearlyCmd.Flags().Bool("download-only", false, "download bulletins without ingesting them")
	syncCmd.AddCommand(syncYearlyCmd)
}
