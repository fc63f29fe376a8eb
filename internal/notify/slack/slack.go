// Package slack relays operator dispatch actions to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

const httpTimeout = 10 * time.Second

// Notifier posts recorded actions to a Slack webhook. It satisfies
// incident.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Notify posts the action to the configured webhook.
func (n *Notifier) Notify(ctx context.Context, a *incident.Action) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(a))
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

func buildMessage(a *incident.Action) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Train driver notified: %s for alert %s", a.Type, a.AlertID),
		"blocks": []map[string]any{
			headerBlock(a),
			fieldsBlock(a),
			contextBlock(a),
		},
	}
}

func headerBlock(a *incident.Action) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Train Driver Notified: %s", actionEmoji(a.Type), a.Type),
		},
	}
}

func fieldsBlock(a *incident.Action) map[string]any {
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{"type": "mrkdwn", "text": fmt.Sprintf("*Alert:* %s", a.AlertID)},
			{"type": "mrkdwn", "text": fmt.Sprintf("*Action:* %s", a.Type)},
			{"type": "mrkdwn", "text": fmt.Sprintf("*Operator:* %s", a.OperatorID)},
			{"type": "mrkdwn", "text": fmt.Sprintf("*Action ID:* %d", a.ID)},
		},
	}
}

func contextBlock(a *incident.Action) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("trackwatch • %s", a.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
			},
		},
	}
}

func actionEmoji(t incident.ActionType) string {
	switch t {
	case incident.ActionStop:
		return "\U0001f534" // red circle
	case incident.ActionSlow:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f535" // blue circle
	}
}
