package alerts

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/atomweather/atomweather/pkg/observation"
	"github.com/atomweather/atomweather/server/internal/config"
)

// defaultCooldown applies when a rule does not set its own.
const defaultCooldown = 15 * time.Minute

// alertKey identifies one rule applied to one station.
type alertKey struct {
	rule    string
	station string
}

// Alert is one rule breach currently in effect for a station. Value holds
// the most recent breaching reading, not the one that started the breach.
type Alert struct {
	RuleName  string    `json:"rule_name"`
	StationID string    `json:"station_id"`
	Severity  string    `json:"severity"`
	Condition string    `json:"condition"`
	Value     float64   `json:"value"`
	FiredAt   time.Time `json:"fired_at"`
}

// Engine watches accepted observations for threshold breaches. A breach
// fires once, stays in effect while the station keeps reporting breaching
// readings, and resolves as soon as a reading comes back in range. A new
// breach within the rule's cooldown of the previous fire is suppressed.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests

	mu        sync.Mutex
	firing    map[alertKey]*Alert
	lastFired map[alertKey]time.Time
}

// New creates an Engine from the server alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:     cfg.Rules,
		webhooks:  cfg.Webhooks,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
		firing:    make(map[alertKey]*Alert),
		lastFired: make(map[alertKey]time.Time),
	}
}

// Evaluate applies every rule to an accepted observation and dispatches
// notifications for the breaches that begin or end with it.
func (e *Engine) Evaluate(rec observation.Record) {
	if len(e.rules) == 0 {
		return
	}
	station := rec.ID()
	now := e.now()

	var began, ended []Alert
	e.mu.Lock()
	for _, rule := range e.rules {
		key := alertKey{rule: rule.Name, station: station}
		breached, value := evalCondition(rule.Condition, rec)
		active := e.firing[key]

		switch {
		case breached && active == nil:
			if now.Sub(e.lastFired[key]) <= ruleCooldown(rule) {
				continue
			}
			a := &Alert{
				RuleName:  rule.Name,
				StationID: station,
				Severity:  ruleSeverity(rule),
				Condition: rule.Condition,
				Value:     value,
				FiredAt:   now,
			}
			e.firing[key] = a
			e.lastFired[key] = now
			began = append(began, *a)

		case breached:
			// Still breaching: same alert, newer reading.
			active.Value = value

		case active != nil:
			delete(e.firing, key)
			ended = append(ended, *active)
		}
	}
	e.mu.Unlock()

	for _, a := range began {
		slog.Warn("alert fired",
			"rule", a.RuleName,
			"station", a.StationID,
			"value", a.Value,
			"severity", a.Severity,
		)
		go e.notify("fired", a)
	}
	for _, a := range ended {
		slog.Info("alert resolved", "rule", a.RuleName, "station", a.StationID)
		go e.notify("resolved", a)
	}
}

// Firing returns the breaches currently in effect, ordered by station id
// then rule name so the admin endpoint's output is stable.
func (e *Engine) Firing() []Alert {
	e.mu.Lock()
	out := make([]Alert, 0, len(e.firing))
	for _, a := range e.firing {
		out = append(out, *a)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].RuleName < out[j].RuleName
	})
	return out
}

func ruleCooldown(r config.AlertRule) time.Duration {
	if r.Cooldown > 0 {
		return r.Cooldown
	}
	return defaultCooldown
}

func ruleSeverity(r config.AlertRule) string {
	if r.Severity == "" {
		return "warning"
	}
	return r.Severity
}
