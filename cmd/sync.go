package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/nav-cli/internal/navsync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download and ingest NAV bulletins",
	Long:  "Fetches bulletins from the AMFI portal for a planned set of business days and loads them into the store.",
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// formatSummary writes a two-column report of a sync or load run to w.
func formatSummary(out io.Writer, sum *navsync.Summary) {
	if sum == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value any
	}{
		{"planned dates", sum.Planned},
		{"fetched", sum.Fetched},
		{"already on disk", sum.Reused},
		{"fetch failed", sum.FetchFailed},
		{"files processed", sum.Files},
		{"succeeded", sum.Succeeded},
		{"empty", sum.Empty},
		{"failed", sum.Failed},
		{"rows inserted", sum.Inserted},
		{"rows updated", sum.Updated},
		{"duration", sum.Duration.Round(time.Millisecond)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%v\n", r.label, r.value)
	}
	_ = w.Flush()

	for _, f := range sum.FailedFiles {
		_, _ = fmt.Fprintf(out, "failed: %s\n", f)
	}
}
