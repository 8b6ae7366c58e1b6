package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/monitoring"
	"github.com/sells-group/zoning-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect county research run history",
	Long:  "Commands for listing, viewing, and summarizing ledger runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List research runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		county, _ := cmd.Flags().GetString("county")
		escalated, _ := cmd.Flags().GetBool("escalated")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status:    model.RunStatus(status),
			County:    county,
			Escalated: escalated,
			Limit:     limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")

		snap, err := monitoring.NewCollector(st).Collect(ctx, hoursIn(since))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, escalated)")
	runsListCmd.Flags().String("county", "", "filter by county slug")
	runsListCmd.Flags().Bool("escalated", false, "show only escalated runs")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// hoursIn converts a --since duration to whole lookback hours, rounding up
// so short windows never collapse to zero (which means "use the default").
func hoursIn(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOUNTY\tSTATUS\tMODE\tDISTRICTS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t---------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		mode := "-"
		districts := "-"
		if r.Result != nil {
			mode = fmt.Sprintf("%d", r.Result.ModeUsed)
			districts = fmt.Sprintf("%d", r.Result.DistrictsUpserted)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.County.Name,
			r.Status,
			mode,
			districts,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes a ledger metrics snapshot to w.
func formatSnapshot(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "Escalated:\t%d\n", s.RunsEscalated)
	_, _ = fmt.Fprintf(w, "Queued:\t%d\n", s.RunsQueued)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.RunsRunning)
	_, _ = fmt.Fprintf(w, "Escalation rate:\t%.1f%%\n", s.EscalationRate*100)
	_, _ = fmt.Fprintf(w, "Mode 1 / 2 / 3:\t%d / %d / %d\n", s.ModeUsed1, s.ModeUsed2, s.ModeUsed3)
	_, _ = fmt.Fprintf(w, "Districts upserted:\t%d\n", s.DistrictsUpserted)
	_, _ = fmt.Fprintf(w, "Standards upserted:\t%d\n", s.StandardsUpserted)
	_, _ = fmt.Fprintf(w, "Uses upserted:\t%d\n", s.UsesUpserted)
	if s.TotalTokens > 0 {
		_, _ = fmt.Fprintf(w, "Tokens:\t%d\n", s.TotalTokens)
		_, _ = fmt.Fprintf(w, "Est. cost:\t$%.2f\n", s.TotalCostUSD)
	}
	if s.AvgDurationSeconds > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurationSeconds)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
