// Package alert turns a classification into an alert event with a severity
// and a rendered message.
package alert

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/strategy"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Event is the outcome of one analysis.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Fired       bool      `json:"fired"`
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	Explanation string    `json:"explanation,omitempty"`
}

// Severity grades a fired alert by confidence.
func Severity(confidence float64) string {
	switch {
	case confidence >= 0.95:
		return SeverityCritical
	case confidence >= 0.85:
		return SeverityHigh
	case confidence >= 0.7:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// severityRank orders severities for comparisons such as log filtering.
var severityRank = map[string]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether severity s is at least min.
func AtLeast(s, min string) bool {
	return severityRank[s] >= severityRank[min]
}

// MessageData is what message templates can reference.
type MessageData struct {
	Label      string
	Confidence float64
	Severity   string
	Strategy   string
	Bucket     string
}

// Decider renders events for one configuration. Templates are parsed once.
type Decider struct {
	good    *template.Template
	bad     *template.Template
	unclear *template.Template
}

// NewDecider parses the configured alert messages as templates.
func NewDecider(cfg *config.WatchConfig) (*Decider, error) {
	good, err := template.New("good_alert_message").Option("missingkey=error").Parse(cfg.GoodMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: good_alert_message: %v", config.ErrConfig, err)
	}
	bad, err := template.New("bad_alert_message").Option("missingkey=error").Parse(cfg.BadMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: bad_alert_message: %v", config.ErrConfig, err)
	}
	unclear, err := template.New("unclear_alert_message").Option("missingkey=error").Parse(cfg.UnclearMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: unclear_alert_message: %v", config.ErrConfig, err)
	}
	return &Decider{good: good, bad: bad, unclear: unclear}, nil
}

// Decide fires on a bad verdict only; UNCLEAR and good verdicts produce an
// informational event.
func (d *Decider) Decide(r *strategy.Result) (*Event, error) {
	ev := &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Fired:     r.Verdict == strategy.VerdictBad,
		Severity:  SeverityInfo,
	}
	if ev.Fired {
		ev.Severity = Severity(r.Confidence)
	}

	tmpl := d.good
	switch r.Verdict {
	case strategy.VerdictBad:
		tmpl = d.bad
	case strategy.VerdictUnclear:
		tmpl = d.unclear
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, MessageData{
		Label:      r.Label,
		Confidence: r.Confidence,
		Severity:   ev.Severity,
		Strategy:   string(r.Strategy),
		Bucket:     r.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rendering %s: %v", config.ErrConfig, tmpl.Name(), err)
	}
	ev.Message = buf.String()

	if r.Explanation != nil && r.Explanation.Summary != "" {
		ev.Explanation = r.Explanation.Summary
		ev.Message += " | Why: " + r.Explanation.Summary
	}
	return ev, nil
}
