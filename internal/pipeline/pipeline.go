// Package pipeline implements the three-mode county research cascade:
// portal discovery, LLM extraction, and the browser-automation fallback,
// followed by persistence or escalation. Mode failures are absorbed into
// the run result; a county run never returns an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/fetch"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/agentql"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
	"github.com/sells-group/zoning-cli/pkg/duckduckgo"
	"github.com/sells-group/zoning-cli/pkg/supabase"
)

// Mode deadlines. Discovery is one round of searches, extraction carries a
// page fetch plus an LLM call, and the fallback drives a real browser;
// budgets grow accordingly.
const (
	defaultMode1Timeout    = 32 * time.Second
	defaultMode2Timeout    = 95 * time.Second
	defaultMode3Timeout    = 125 * time.Second
	defaultDiscoveryBudget = 28 * time.Second
	defaultCacheTTL        = 24 * time.Hour
)

// Pipeline orchestrates the research cascade, one county per Run call.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	search  duckduckgo.Client
	fetcher fetch.Fetcher
	ai      anthropic.Client
	scraper agentql.Client
	db      supabase.Client
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	search duckduckgo.Client,
	fetcher fetch.Fetcher,
	aiClient anthropic.Client,
	scraperClient agentql.Client,
	dbClient supabase.Client,
) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		search:  search,
		fetcher: fetcher,
		ai:      aiClient,
		scraper: scraperClient,
		db:      dbClient,
	}
}

// Run executes the full cascade for a single county. It never returns an
// error: every failure lands in the result's error list, and a county that
// defeats all three modes comes back escalated instead.
func (p *Pipeline) Run(ctx context.Context, job model.CountyJob) *model.RunResult {
	start := time.Now()
	job.Normalize()

	log := zap.L().With(
		zap.String("county", job.Name),
		zap.String("slug", job.Slug),
		zap.Int("co_no", job.CoNo),
	)
	log.Info("pipeline: starting county research",
		zap.String("portal_type", string(job.PortalType)),
		zap.Bool("anti_scrape", job.AntiScrape),
	)

	result := &model.RunResult{
		County: job.Name,
		CoNo:   job.CoNo,
		Errors: []string{},
	}

	// Ledger entry. A broken ledger degrades to an untracked run.
	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, job)
		if err != nil {
			log.Warn("pipeline: failed to create run", zap.Error(err))
		} else {
			runID = run.ID
		}
	}
	setStatus := func(status model.RunStatus) {
		if runID == "" {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}
	setStatus(model.RunStatusRunning)

	// Mode 1: portal discovery.
	runMode(ctx, 1, secondsOr(p.cfg.Pipeline.Mode1TimeoutSecs, defaultMode1Timeout), &result.Errors, func(mctx context.Context) {
		disc := DiscoverPhase(mctx, job, p.search, secondsOr(p.cfg.Pipeline.DiscoveryBudgetSecs, defaultDiscoveryBudget))
		result.Errors = append(result.Errors, disc.Errors...)
		result.PortalValidated = disc.Validated
		if disc.PortalType != "" {
			job.PortalType = disc.PortalType
		}
		// A discovered URL backfills the job only when the roster had none.
		if disc.FoundURL != "" && job.MunicodeURL == "" {
			job.MunicodeURL = disc.FoundURL
		}
		if mctx.Err() == nil {
			result.ModeUsed = 1
		}
	})

	// The county's rate hint narrows the portal host's fetch budget.
	p.applyRateHint(job)

	// Mode 2: fetch and LLM extraction.
	var data *model.ExtractedData
	runMode(ctx, 2, secondsOr(p.cfg.Pipeline.Mode2TimeoutSecs, defaultMode2Timeout), &result.Errors, func(mctx context.Context) {
		ex := ExtractPhase(mctx, job, p.store, p.fetcher, p.ai, p.cfg.Anthropic, p.cfg.Pipeline)
		result.Errors = append(result.Errors, ex.Errors...)
		result.TotalTokens += int(ex.Usage.InputTokens + ex.Usage.OutputTokens)
		result.TotalCostUSD += ex.CostUSD
		if ex.Data != nil {
			data = ex.Data
		}
		if ex.Fetched && mctx.Err() == nil {
			result.ModeUsed = 2
		}
	})

	// Mode 3: browser automation, for anti-scrape counties and whenever the
	// direct path came back empty.
	if !data.HasData() || job.AntiScrape {
		runMode(ctx, 3, secondsOr(p.cfg.Pipeline.Mode3TimeoutSecs, defaultMode3Timeout), &result.Errors, func(mctx context.Context) {
			fb := FallbackPhase(mctx, job, p.scraper)
			result.Errors = append(result.Errors, fb.Errors...)
			if fb.Data != nil {
				data = fb.Data
				result.ModeUsed = 3
			}
		})
	}

	// Persist or escalate, never both. Skip-persist leaves the zoning
	// database untouched either way.
	switch {
	case p.cfg.Pipeline.SkipPersist:
		if !data.HasData() {
			result.Escalated = true
		}
		log.Info("pipeline: skip-persist set, zoning db untouched",
			zap.Bool("has_data", data.HasData()),
		)
	case data.HasData():
		stats := PersistPhase(ctx, p.db, job, data)
		result.Errors = append(result.Errors, stats.Errors...)
		result.DistrictsUpserted = stats.Districts
		result.StandardsUpserted = stats.Standards
		result.UsesUpserted = stats.Uses
		result.StandardsDropped = stats.StandardsDropped
		result.UsesDropped = stats.UsesDropped
	default:
		EscalatePhase(ctx, p.db, job, result.Errors)
		result.Escalated = true
	}

	result.DurationSeconds = math.Round(time.Since(start).Seconds()*100) / 100
	result.CompletedAt = time.Now().UTC()

	if runID != "" {
		if err := p.store.CompleteRun(ctx, runID, result); err != nil {
			log.Warn("pipeline: failed to save result", zap.Error(err))
		}
	}

	log.Info("pipeline: county research done",
		zap.Int("mode_used", result.ModeUsed),
		zap.Int("districts", result.DistrictsUpserted),
		zap.Int("standards", result.StandardsUpserted),
		zap.Int("uses", result.UsesUpserted),
		zap.Bool("escalated", result.Escalated),
		zap.Float64("duration_s", result.DurationSeconds),
	)
	return result
}

// runMode executes fn under the mode deadline. A deadline hit appends
// mode{n}_timeout; a panic is contained and appends mode{n}_exception so
// one county's broken portal cannot take down a batch.
func runMode(ctx context.Context, mode int, timeout time.Duration, errs *[]string, fn func(context.Context)) {
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			*errs = append(*errs, fmt.Sprintf("mode%d_exception: %v", mode, r))
			zap.L().Error("pipeline: mode panicked", zap.Int("mode", mode), zap.Any("panic", r))
		}
	}()
	fn(mctx)
	if errors.Is(mctx.Err(), context.DeadlineExceeded) {
		*errs = append(*errs, fmt.Sprintf("mode%d_timeout", mode))
		zap.L().Error("pipeline: mode deadline exceeded", zap.Int("mode", mode))
	}
}

// applyRateHint passes the county's requests-per-minute hint to the fetcher
// when it supports per-host tuning. Host comes from the portal URL, so this
// runs after discovery.
func (p *Pipeline) applyRateHint(job model.CountyJob) {
	tuner, ok := p.fetcher.(interface{ SetHostRPM(host string, rpm int) })
	if !ok || job.RateLimitRPM <= 0 {
		return
	}
	u, err := url.Parse(job.PortalURL())
	if err != nil || u.Host == "" {
		return
	}
	tuner.SetHostRPM(u.Host, job.RateLimitRPM)
}

// secondsOr converts a seconds config value, falling back when unset.
func secondsOr(secs int, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
