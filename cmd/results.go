package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/monitoring"
	"github.com/sells-group/serialscan/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect saved scan results",
}

// -- results list --

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved results, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		source, _ := cmd.Flags().GetString("source")
		serial, _ := cmd.Flags().GetString("serial")
		agent, _ := cmd.Flags().GetString("agent")
		limit, _ := cmd.Flags().GetInt("limit")
		hours, _ := cmd.Flags().GetInt("hours")

		filter := store.ResultFilter{
			Source: model.Source(source),
			Serial: serial,
			Agent:  agent,
			Limit:  limit,
		}
		if hours > 0 {
			filter.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		}

		recs, err := st.ListResults(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "results list")
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}

		formatResultsList(os.Stdout, recs)
		return nil
	},
}

// -- results stats --

var resultsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize saved results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours, _ := cmd.Flags().GetInt("hours")
		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "results stats")
		}
		return writeJSON(os.Stdout, snap)
	},
}

func formatResultsList(out io.Writer, recs []model.CaseRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSERIAL\tCONF\tSOURCE\tKNOWN\tEDITED\tAGENT\tSAVED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t-----\t------\t-----\t-----")

	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%t\t%t\t%s\t%s\n",
			truncateID(r.ID),
			r.Serial,
			r.Confidence,
			r.Source,
			r.IsKnownGood,
			r.Edited,
			r.Agent,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	resultsListCmd.Flags().String("source", "", "filter by source (ocr, gpt_extract, gpt_verify, none)")
	resultsListCmd.Flags().String("serial", "", "filter by serial number")
	resultsListCmd.Flags().String("agent", "", "filter by variant")
	resultsListCmd.Flags().Int("limit", 50, "maximum results")
	resultsListCmd.Flags().Int("hours", 0, "only results from the last N hours")
	resultsStatsCmd.Flags().Int("hours", 24, "lookback window in hours, 0 for all")

	resultsCmd.AddCommand(resultsListCmd, resultsStatsCmd)
	rootCmd.AddCommand(resultsCmd)
}
