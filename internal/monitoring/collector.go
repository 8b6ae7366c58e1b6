// Package monitoring reads batch health off the run ledger and raises
// webhook alerts when escalations or spend cross their thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

// defaultLookbackHours is the snapshot window when none is configured; one
// day covers a nightly batch plus its reruns.
const defaultLookbackHours = 24

// MetricsSnapshot is a point-in-time view of research health over the
// lookback window.
type MetricsSnapshot struct {
	RunsTotal     int `json:"runs_total"`
	RunsComplete  int `json:"runs_complete"`
	RunsEscalated int `json:"runs_escalated"`
	RunsQueued    int `json:"runs_queued"`
	RunsRunning   int `json:"runs_running"`

	// EscalationRate is escalated / finished runs; zero when nothing
	// finished in the window.
	EscalationRate float64 `json:"escalation_rate"`

	// Which research mode finished runs ended on.
	ModeUsed1 int `json:"mode_used_1"`
	ModeUsed2 int `json:"mode_used_2"`
	ModeUsed3 int `json:"mode_used_3"`

	DistrictsUpserted int `json:"districts_upserted"`
	StandardsUpserted int `json:"standards_upserted"`
	UsesUpserted      int `json:"uses_upserted"`

	TotalCostUSD       float64 `json:"total_cost_usd"`
	TotalTokens        int     `json:"total_tokens"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the run ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the run ledger.
type Collector struct {
	runs RunLister
}

// NewCollector creates a metrics collector over the given ledger.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect builds a snapshot of the runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = defaultLookbackHours
	}
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalDuration float64
	var finishedWithResult int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusEscalated:
			snap.RunsEscalated++
		case model.RunStatusQueued:
			snap.RunsQueued++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Result == nil {
			continue
		}
		snap.DistrictsUpserted += r.Result.DistrictsUpserted
		snap.StandardsUpserted += r.Result.StandardsUpserted
		snap.UsesUpserted += r.Result.UsesUpserted
		snap.TotalCostUSD += r.Result.TotalCostUSD
		snap.TotalTokens += r.Result.TotalTokens
		totalDuration += r.Result.DurationSeconds
		finishedWithResult++
		switch r.Result.ModeUsed {
		case 1:
			snap.ModeUsed1++
		case 2:
			snap.ModeUsed2++
		case 3:
			snap.ModeUsed3++
		}
	}

	finished := snap.RunsComplete + snap.RunsEscalated
	if finished > 0 {
		snap.EscalationRate = float64(snap.RunsEscalated) / float64(finished)
	}
	if finishedWithResult > 0 {
		snap.AvgDurationSeconds = totalDuration / float64(finishedWithResult)
	}
	return snap, nil
}
