package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/monitoring"
)

var (
	batchCounties    string
	batchAll         bool
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Research zoning data for many counties concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		roster, err := config.LoadRoster(cfg.Counties.Path)
		if err != nil {
			return err
		}

		counties, err := selectCounties(roster, batchCounties, batchAll)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentCounties
		}

		results := env.Pipeline.RunBatch(ctx, counties, concurrency)

		totals := tallyResults(results)
		formatBatchSummary(os.Stdout, results, totals)

		// Post-batch health pass; alert failures never change the outcome.
		if cfg.Monitoring.WebhookURL != "" {
			monitoring.RunCheck(ctx, env.Store, cfg.Monitoring)
		}

		if totals.Escalated > 0 {
			cmd.SilenceUsage = true
			return eris.Errorf("batch: %d of %d counties escalated", totals.Escalated, totals.Counties)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCounties, "counties", "", "comma-separated county names or slugs")
	batchCmd.Flags().BoolVar(&batchAll, "all", false, "research every county in the roster")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent county runs (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// selectCounties resolves the --counties/--all selection against the roster.
func selectCounties(roster *config.Roster, countiesCSV string, all bool) ([]model.CountyJob, error) {
	if all && countiesCSV != "" {
		return nil, eris.New("batch: use --counties or --all, not both")
	}
	if all {
		return roster.Counties, nil
	}
	if countiesCSV == "" {
		return nil, eris.New("batch: specify --counties or --all")
	}

	names := strings.Split(countiesCSV, ",")
	counties := make([]model.CountyJob, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		job, ok := roster.Get(name)
		if !ok {
			return nil, eris.Errorf("batch: county %q not in roster", name)
		}
		counties = append(counties, job)
	}
	if len(counties) == 0 {
		return nil, eris.New("batch: --counties resolved to no counties")
	}
	return counties, nil
}

// batchTotals aggregates a batch's results for the summary footer and the
// exit status.
type batchTotals struct {
	Counties  int
	Complete  int
	Escalated int
	Districts int
	Standards int
	Uses      int
	Tokens    int
	CostUSD   float64
}

func tallyResults(results []*model.RunResult) batchTotals {
	t := batchTotals{Counties: len(results)}
	for _, r := range results {
		if r.Escalated {
			t.Escalated++
		} else {
			t.Complete++
		}
		t.Districts += r.DistrictsUpserted
		t.Standards += r.StandardsUpserted
		t.Uses += r.UsesUpserted
		t.Tokens += r.TotalTokens
		t.CostUSD += r.TotalCostUSD
	}
	return t
}

// formatBatchSummary writes one line per county plus a totals footer.
func formatBatchSummary(out io.Writer, results []*model.RunResult, totals batchTotals) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COUNTY\tSTATUS\tMODE\tDISTRICTS\tSTANDARDS\tUSES\tERRORS\tDURATION")
	_, _ = fmt.Fprintln(w, "------\t------\t----\t---------\t---------\t----\t------\t--------")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1fs\n",
			r.County,
			r.Status(),
			r.ModeUsed,
			r.DistrictsUpserted,
			r.StandardsUpserted,
			r.UsesUpserted,
			len(r.Errors),
			r.DurationSeconds,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d counties: %d complete, %d escalated\n",
		totals.Counties, totals.Complete, totals.Escalated)
	_, _ = fmt.Fprintf(out, "%d districts, %d standards, %d uses upserted\n",
		totals.Districts, totals.Standards, totals.Uses)
	if totals.Tokens > 0 {
		_, _ = fmt.Fprintf(out, "%d tokens, $%.2f estimated\n", totals.Tokens, totals.CostUSD)
	}

	zap.L().Info("batch summary",
		zap.Int("counties", totals.Counties),
		zap.Int("complete", totals.Complete),
		zap.Int("escalated", totals.Escalated),
		zap.Float64("cost_usd", totals.CostUSD),
	)
}
