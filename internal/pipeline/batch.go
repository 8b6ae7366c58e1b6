package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoning-cli/internal/model"
)

// DefaultMaxConcurrent bounds simultaneous county runs. Three keeps the
// batch under portal rate limits while still clearing the roster overnight.
const DefaultMaxConcurrent = 3

// RunBatch researches counties concurrently, bounded by maxConcurrent.
// Results land at the index of their input county. A county whose run
// panics yields a structured failure result and never aborts its siblings.
func (p *Pipeline) RunBatch(ctx context.Context, counties []model.CountyJob, maxConcurrent int) []*model.RunResult {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	zap.L().Info("batch: starting",
		zap.Int("counties", len(counties)),
		zap.Int("max_concurrent", maxConcurrent),
	)

	results := make([]*model.RunResult, len(counties))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, county := range counties {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("batch: county run panicked",
						zap.String("county", county.Name),
						zap.Any("panic", r),
					)
					results[i] = failureResult(county, fmt.Sprintf("%v", r))
				}
			}()
			results[i] = p.Run(gCtx, county)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch: finished", zap.Int("counties", len(counties)))
	return results
}

// failureResult is the result contract for a county whose run never
// finished.
func failureResult(county model.CountyJob, errMsg string) *model.RunResult {
	return &model.RunResult{
		County:      county.Name,
		CoNo:        county.CoNo,
		Errors:      []string{errMsg},
		Escalated:   true,
		CompletedAt: time.Now().UTC(),
	}
}
