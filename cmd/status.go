package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/nav-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ingestion run log",
	Long:  "Lists the most recent processed bulletin files with their outcome and row counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(false); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		if output != "table" && output != "yaml" {
			return eris.Errorf("status: unknown output %q (want table or yaml)", output)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no runs found, run 'sync daily' or 'load' first")
			return nil
		}

		if output == "yaml" {
			return writeStatusYAML(os.Stdout, entries)
		}
		formatStatusEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 50, "maximum number of runs to show")
	statusCmd.Flags().StringP("output", "o", "table", "output format: table or yaml")
	rootCmd.AddCommand(statusCmd)
}

// formatStatusEntries writes a tabular representation of run entries to w.
func formatStatusEntries(out io.Writer, entries []model.RunEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tSTARTED\tDURATION\tPARSED\tVALID\tINSERTED\tUPDATED\tERROR")
	_, _ = fmt.Fprintln(w, "------\t------\t-------\t--------\t------\t-----\t--------\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Millisecond).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			e.Source,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsParsed,
			e.RowsValid,
			e.Inserted,
			e.Updated,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func writeStatusYAML(out io.Writer, entries []model.RunEntry) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return eris.Wrap(err, "status: encode yaml")
	}
	return eris.Wrap(enc.Close(), "status: flush yaml")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
