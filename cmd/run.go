package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/model"
)

var (
	runCoNo        int
	runSlug        string
	runPortalType  string
	runAntiScrape  bool
	runRateLimit   int
	runMunicodeURL string
	runGISURL      string
	runSkipPersist bool
)

var runCmd = &cobra.Command{
	Use:   "run <county>",
	Short: "Research zoning data for a single county",
	Long:  "Runs the full cascade for one county. Roster values seed the job when the county is listed in counties.yaml; flags override them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runSkipPersist {
			cfg.Pipeline.SkipPersist = true
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job := countyJob(cmd, args[0])

		result := env.Pipeline.Run(ctx, job)

		zap.L().Info("county research complete",
			zap.String("county", result.County),
			zap.Int("mode_used", result.ModeUsed),
			zap.Int("districts", result.DistrictsUpserted),
			zap.Bool("escalated", result.Escalated),
			zap.Int("total_tokens", result.TotalTokens),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().IntVar(&runCoNo, "co-no", 0, "FDOT county number (1-67)")
	runCmd.Flags().StringVar(&runSlug, "slug", "", "county slug (derived from the name when omitted)")
	runCmd.Flags().StringVar(&runPortalType, "portal-type", "", "portal type hint (municode, arcgis, pdf)")
	runCmd.Flags().BoolVar(&runAntiScrape, "anti-scrape", false, "portal blocks scrapers; go straight to browser automation")
	runCmd.Flags().IntVar(&runRateLimit, "rate-limit", 0, "portal request budget in requests per minute")
	runCmd.Flags().StringVar(&runMunicodeURL, "municode-url", "", "known Municode library URL")
	runCmd.Flags().StringVar(&runGISURL, "gis-url", "", "known GIS portal URL")
	runCmd.Flags().BoolVar(&runSkipPersist, "skip-persist", false, "run the cascade without writing to the zoning database")
	rootCmd.AddCommand(runCmd)
}

// countyJob builds the job for a run: the roster entry when the county is
// listed, overlaid with whichever flags were set on the command line.
func countyJob(cmd *cobra.Command, nameOrSlug string) model.CountyJob {
	job := model.CountyJob{Name: nameOrSlug}

	roster, err := config.LoadRoster(cfg.Counties.Path)
	if err != nil {
		zap.L().Debug("roster not loaded, county built from flags alone", zap.Error(err))
	} else if entry, ok := roster.Get(nameOrSlug); ok {
		job = entry
	} else {
		zap.L().Warn("county not in roster", zap.String("county", nameOrSlug))
	}

	f := cmd.Flags()
	if f.Changed("co-no") {
		job.CoNo = runCoNo
	}
	if f.Changed("slug") {
		job.Slug = runSlug
	}
	if f.Changed("portal-type") {
		job.PortalType = model.PortalType(runPortalType)
	}
	if f.Changed("anti-scrape") {
		job.AntiScrape = runAntiScrape
	}
	if f.Changed("rate-limit") {
		job.RateLimitRPM = runRateLimit
	}
	if f.Changed("municode-url") {
		job.MunicodeURL = runMunicodeURL
	}
	if f.Changed("gis-url") {
		job.GISURL = runGISURL
	}
	return job
}
