package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load FILE...",
	Short: "Ingest local bulletin files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(false); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := newRunner(st, false).LoadFiles(ctx, args)
		formatSummary(os.Stdout, sum)
		if err != nil {
			return eris.Wrap(err, "load")
		}
		if sum.Failed > 0 {
			return eris.Errorf("load: %d of %d files failed", sum.Failed, sum.Files)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
