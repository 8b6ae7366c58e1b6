package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/supabase"
)

// EscalatePhase records a county that defeated every research mode: one
// ESCALATE row in the insights table, and data_completeness -1 on the
// county's jurisdiction rows so downstream consumers see the gap. Neither
// write may fail the run; the result already carries the escalation.
func EscalatePhase(ctx context.Context, db supabase.Client, job model.CountyJob, errs []string) {
	log := zap.L().With(zap.String("county", job.Name), zap.String("slug", job.Slug))
	log.Error("escalate: all research modes failed", zap.Strings("errors", errs))

	rec := model.NewEscalationRecord(job.Name, job.Slug, errs)
	row := supabase.Row{
		"type":            rec.Type,
		"county":          rec.County,
		"message":         rec.Message,
		"error":           rec.Error,
		"modes_attempted": rec.ModesAttempted,
		"action":          rec.Action,
		"created_at":      rec.CreatedAt,
	}
	if _, err := db.Insert(ctx, "insights", row); err != nil {
		log.Error("escalate: insight insert failed", zap.Error(err))
	} else {
		log.Info("escalate: insight recorded")
	}

	if _, err := db.Update(ctx, "jurisdictions", countyFilter(job.Name), supabase.Row{"data_completeness": -1}); err != nil {
		log.Warn("escalate: completeness update failed", zap.Error(err))
	}
}
