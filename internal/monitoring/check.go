package monitoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
)

// RunCheck is the post-batch health pass: collect a snapshot, evaluate it,
// and deliver any alerts. Failures are logged, never fatal; the batch
// outcome stands on its own. Returns the snapshot, or nil when collection
// failed.
func RunCheck(ctx context.Context, runs RunLister, cfg config.MonitoringConfig) *MetricsSnapshot {
	log := zap.L().With(zap.String("component", "monitoring"))

	snap, err := NewCollector(runs).Collect(ctx, cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}
	log.Info("monitoring: snapshot collected",
		zap.Int("runs_total", snap.RunsTotal),
		zap.Int("escalated", snap.RunsEscalated),
		zap.Float64("escalation_rate", snap.EscalationRate),
		zap.Float64("cost_usd", snap.TotalCostUSD),
	)

	alerter := NewAlerter(cfg)
	alerts := alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return snap
	}

	sent := alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap
}
