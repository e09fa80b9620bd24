// Package slack sends storm and escalation notifications to Slack via
// incoming webhooks. Delivery is best-effort: failures are logged, never
// surfaced to the workflow.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/incident"
)

const (
	maxDescriptionLen = 3000
	httpTimeout       = 10 * time.Second
)

// Notifier posts workflow notifications to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, all
// notifications are no-ops.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// StormDetected implements the storm notifier hook.
func (n *Notifier) StormDetected(ctx context.Context, tenantID, deviceID string, count int64) {
	n.post(ctx, buildStormMessage(tenantID, deviceID, count))
}

// IncidentEscalated implements the incident notifier hook.
func (n *Notifier) IncidentEscalated(ctx context.Context, inc *incident.Incident) {
	n.post(ctx, buildIncidentMessage(inc))
}

func (n *Notifier) post(ctx context.Context, msg map[string]any) {
	if n.webhookURL == "" {
		return
	}
	if err := n.send(ctx, msg); err != nil {
		n.logger.Error(ctx, err, "slack notification failed")
	}
}

func (n *Notifier) send(ctx context.Context, msg map[string]any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildStormMessage(tenantID, deviceID string, count int64) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("\U0001f534 Alert Storm: %s", deviceID),
				},
			},
			{"type": "divider"},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Tenant:* %s", tenantID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Device:* %s", deviceID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Alerts in window:* %d", count)},
					{"type": "mrkdwn", "text": "*Suppression:* 15m"},
				},
			},
			{"type": "divider"},
			contextBlock(time.Now()),
		},
	}
}

func buildIncidentMessage(inc *incident.Incident) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Incident Escalated: %s", severityEmoji(inc.Severity), inc.Title),
				},
			},
			{"type": "divider"},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Tenant:* %s", inc.TenantID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", inc.Severity)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Owner:* %s", inc.OwnerID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Alert:* %s", inc.LinkedAlertID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Resolve by:* %s", inc.SLAResolveBy.UTC().Format("2006-01-02 15:04 UTC"))},
				},
			},
			{"type": "divider"},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": descriptionText(inc.Description),
				},
			},
			{"type": "divider"},
			contextBlock(inc.CreatedAt),
		},
	}
}

func contextBlock(ts time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("rampart • %s", ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func severityEmoji(sev alert.Severity) string {
	switch sev {
	case alert.SeverityCritical, alert.SeverityHigh:
		return "\U0001f534" // red circle
	case alert.SeverityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func descriptionText(desc string) string {
	if desc == "" {
		return "_No description available._"
	}
	return "*Description*\n\n" + truncate(desc, maxDescriptionLen)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
