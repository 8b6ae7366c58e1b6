package model

import "time"

// RunStatus represents the current state of a county research run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusEscalated RunStatus = "escalated"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one ledger entry: a county job plus its eventual result.
type Run struct {
	ID        string     `json:"id"`
	County    CountyJob  `json:"county"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult is the data contract of a county research run. It is always
// produced, whatever failed along the way; errors accumulate instead of
// aborting the run.
type RunResult struct {
	County            string    `json:"county"`
	CoNo              int       `json:"co_no"`
	DistrictsUpserted int       `json:"districts_upserted"`
	StandardsUpserted int       `json:"standards_upserted"`
	UsesUpserted      int       `json:"uses_upserted"`
	StandardsDropped  int       `json:"standards_dropped,omitempty"`
	UsesDropped       int       `json:"uses_dropped,omitempty"`
	ModeUsed          int       `json:"mode_used"`
	PortalValidated   bool      `json:"portal_validated"`
	Errors            []string  `json:"errors"`
	Escalated         bool      `json:"escalated"`
	DurationSeconds   float64   `json:"duration_seconds"`
	CompletedAt       time.Time `json:"completed_at"`
	TotalTokens       int       `json:"total_tokens,omitempty"`
	TotalCostUSD      float64   `json:"total_cost_usd,omitempty"`
}

// Status maps a result onto its terminal ledger status.
func (r *RunResult) Status() RunStatus {
	if r.Escalated {
		return RunStatusEscalated
	}
	return RunStatusComplete
}

// Page is a fetched portal page, cacheable between runs.
type Page struct {
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	StatusCode int       `json:"status_code"`
	Source     string    `json:"source"` // which fetcher produced it
	FetchedAt  time.Time `json:"fetched_at"`
}
