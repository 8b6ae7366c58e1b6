package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertEscalationRate AlertType = "escalation_rate"
	AlertCostOverrun    AlertType = "cost_overrun"
)

// minFinishedForRate suppresses the escalation-rate alert until enough
// counties finished for the rate to mean anything.
const minFinishedForRate = 5

// Alert is a single alert payload for the webhook.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// delivers breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsEscalated
	if finished >= minFinishedForRate && snap.EscalationRate > a.cfg.EscalationRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEscalationRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Escalation rate %.1f%% exceeds threshold %.1f%% (%d escalated / %d finished in last %dh)",
				snap.EscalationRate*100, a.cfg.EscalationRateThreshold*100,
				snap.RunsEscalated, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"escalation_rate": snap.EscalationRate,
				"threshold":       a.cfg.EscalationRateThreshold,
				"escalated":       snap.RunsEscalated,
				"finished":        finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostLimitUSD > 0 && snap.TotalCostUSD > a.cfg.CostLimitUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"API cost $%.2f exceeds limit $%.2f in last %dh",
				snap.TotalCostUSD, a.cfg.CostLimitUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":   snap.TotalCostUSD,
				"limit_usd":  a.cfg.CostLimitUSD,
				"runs_total": snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL. Returns the
// number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
