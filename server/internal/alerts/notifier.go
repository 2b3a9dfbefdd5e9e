package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// notify delivers one breach state change (event "fired" or "resolved") to
// every configured webhook target. Delivery is best-effort: failures are
// logged and never reach the request path.
func (e *Engine) notify(event string, a Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		payload, err := renderPayload(wh.Type, event, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(url, payload); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"station", a.StationID,
				"err", err,
			)
		}
	}
}

// renderPayload builds the notification body for one webhook type.
func renderPayload(whType, event string, a Alert) ([]byte, error) {
	switch whType {
	case "slack":
		var text string
		if event == "resolved" {
			text = fmt.Sprintf("Weather alert %s resolved: station %s back in range",
				a.RuleName, a.StationID)
		} else {
			text = fmt.Sprintf("[%s] Weather alert %s: station %s breached %q, reading %.1f",
				strings.ToUpper(a.Severity), a.RuleName, a.StationID, a.Condition, a.Value)
		}
		return json.Marshal(map[string]string{"text": text})

	case "http":
		return json.Marshal(map[string]any{
			"event":      event,
			"rule":       a.RuleName,
			"station_id": a.StationID,
			"severity":   a.Severity,
			"condition":  a.Condition,
			"value":      a.Value,
			"fired_at":   a.FiredAt.UTC().Format(time.RFC3339),
		})

	default:
		return nil, fmt.Errorf("unknown webhook type %q", whType)
	}
}

func (e *Engine) post(url string, payload []byte) error {
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
