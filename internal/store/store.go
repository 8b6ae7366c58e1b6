package store

import (
	"context"
	"time"

	"github.com/sells-group/zoning-cli/internal/model"
)

// RunFilter specifies criteria for listing ledger runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	County       string          `json:"county,omitempty"` // county slug, e.g. "palm-beach"
	Escalated    bool            `json:"escalated,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store is the run ledger and page cache behind the research pipeline.
type Store interface {
	// Runs. CreateRun normalizes the county job before storing it;
	// CompleteRun attaches the result and moves the run to its terminal
	// status (complete or escalated).
	CreateRun(ctx context.Context, county model.CountyJob) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Page cache, keyed by URL. Expired entries are invisible to readers
	// until DeleteExpiredPages reclaims them.
	GetCachedPage(ctx context.Context, pageURL string) (*model.Page, error)
	SetCachedPage(ctx context.Context, page *model.Page, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
