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

	"github.com/sells-group/serialscan/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertNullRate   AlertType = "null_rate"
	AlertEditRate   AlertType = "edit_rate"
	AlertOCRLatency AlertType = "ocr_latency"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Rates are only judged once MinSamples results are in the window.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	enough := snap.Total > 0 && snap.Total >= a.cfg.MinSamples

	if enough && a.cfg.NullRateThreshold > 0 && snap.NullRate > a.cfg.NullRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertNullRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%.1f%% of saved results have no serial number, threshold %.1f%% (%d of %d in last %dh)",
				snap.NullRate*100, a.cfg.NullRateThreshold*100, snap.Null, snap.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"null_rate": snap.NullRate,
				"threshold": a.cfg.NullRateThreshold,
				"total":     snap.Total,
			},
			Timestamp: now,
		})
	}

	if enough && a.cfg.EditRateThreshold > 0 && snap.EditedRate > a.cfg.EditRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEditRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of saved results were corrected by hand, threshold %.1f%% (%d of %d in last %dh)",
				snap.EditedRate*100, a.cfg.EditRateThreshold*100, snap.Edited, snap.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"edited_rate": snap.EditedRate,
				"threshold":   a.cfg.EditRateThreshold,
				"total":       snap.Total,
			},
			Timestamp: now,
		})
	}

	if ms, ok := snap.MeanLatencyMs["ocr"]; ok && a.cfg.OCRLatencyMs > 0 && ms > float64(a.cfg.OCRLatencyMs) {
		alerts = append(alerts, Alert{
			Type:     AlertOCRLatency,
			Severity: "medium",
			Message: fmt.Sprintf(
				"mean OCR latency %.0fms exceeds %dms in last %dh",
				ms, a.cfg.OCRLatencyMs, snap.LookbackHours,
			),
			Details: map[string]any{
				"mean_ms":      ms,
				"threshold_ms": a.cfg.OCRLatencyMs,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
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
