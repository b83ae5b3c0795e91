// Package explain turns classification internals into human-readable reasons.
package explain

import (
	"fmt"
	"math"
	"strings"

	"github.com/gzhole/claudewatch/internal/classifier"
)

// Explanation says why a sample was classified the way it was.
type Explanation struct {
	Summary       string                   `json:"summary"`
	Lines         []string                 `json:"lines,omitempty"`
	Attributions  []classifier.Attribution `json:"attributions,omitempty"`
	Logit         float64                  `json:"logit,omitempty"`
	BaselineLogit float64                  `json:"baseline_logit,omitempty"`
}

// Strength grades an attribution's magnitude.
func Strength(v float64) string {
	switch a := math.Abs(v); {
	case a > 0.1:
		return "strongly"
	case a > 0.05:
		return "moderately"
	default:
		return "slightly"
	}
}

// Logistic attributes a logistic prediction to its features and surfaces the
// topK largest pushes.
func Logistic(m *classifier.Model, x []float64, topK int, goodLabel, badLabel string) *Explanation {
	attrs := m.Attribute(x)
	e := &Explanation{
		Attributions:  attrs,
		Logit:         m.Logit(x),
		BaselineLogit: m.BaselineLogit(),
	}
	for i, a := range attrs {
		if i >= topK {
			break
		}
		if a.Value == 0 {
			continue
		}
		toward := badLabel
		if a.Value < 0 {
			toward = goodLabel
		}
		e.Lines = append(e.Lines, fmt.Sprintf("%s %s pushes toward %s (%+.3f)", a.Label, Strength(a.Value), toward, a.Value))
	}
	if len(e.Lines) == 0 {
		e.Summary = "no feature moved the prediction away from baseline"
	} else {
		e.Summary = strings.Join(e.Lines, "; ")
	}
	return e
}

// Trigger wraps a literal trigger condition.
func Trigger(text string) *Explanation {
	return &Explanation{Summary: text}
}

// Format renders an explanation as an indented block for terminal output.
func Format(e *Explanation) string {
	if e == nil {
		return ""
	}
	if len(e.Lines) == 0 {
		return e.Summary + "\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top contributing features (logit %.3f vs baseline %.3f):\n", e.Logit, e.BaselineLogit)
	for _, line := range e.Lines {
		fmt.Fprintf(&sb, "  - %s\n", line)
	}
	return sb.String()
}
