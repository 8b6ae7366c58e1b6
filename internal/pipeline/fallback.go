package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/agentql"
)

// Fallback is the outcome of the browser automation mode.
type Fallback struct {
	Data    *model.ExtractedData
	Records int
	Errors  []string
}

// FallbackPhase hands the county to the browser automation service. It runs
// for anti-scrape counties and whenever the direct modes produced nothing.
// On success the service's data replaces whatever extraction found.
func FallbackPhase(ctx context.Context, job model.CountyJob, scraper agentql.Client) Fallback {
	log := zap.L().With(zap.String("county", job.Name))
	log.Info("fallback: invoking browser automation",
		zap.Bool("anti_scrape", job.AntiScrape),
		zap.String("portal_url", job.PortalURL()),
	)

	var out Fallback
	resp, err := scraper.ScrapeCounty(ctx, agentql.ScrapeRequest{
		CountySlug:   job.Slug,
		CoNo:         job.CoNo,
		PortalURL:    job.PortalURL(),
		AntiScrape:   job.AntiScrape,
		RateLimitRPM: job.RateLimitRPM,
	})
	if err != nil {
		var apiErr *agentql.APIError
		if errors.As(err, &apiErr) {
			log.Error("fallback: service returned error status", zap.Int("status", apiErr.StatusCode))
			out.Errors = append(out.Errors,
				fmt.Sprintf("mode3_http_%d: %s", apiErr.StatusCode, truncateText(apiErr.Body, 200)))
			return out
		}
		log.Error("fallback: service call failed", zap.Error(err))
		out.Errors = append(out.Errors, "mode3_exception: "+err.Error())
		return out
	}

	log.Info("fallback: scrape succeeded", zap.Int("records", resp.Records))
	out.Data = &resp.Data
	out.Records = resp.Records
	return out
}
