// Package strategy implements the interchangeable classification policies
// selected by alert_strategy. Every policy returns the same Result shape.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/explain"
	"github.com/gzhole/claudewatch/internal/features"
	"github.com/gzhole/claudewatch/internal/judge"
	"github.com/gzhole/claudewatch/internal/scoring"
)

// ErrClassification is returned when a policy cannot reach a verdict.
var ErrClassification = errors.New("classification failed")

// Verdict is the polarity of a classification, independent of configured labels.
type Verdict string

const (
	VerdictGood    Verdict = "good"
	VerdictBad     Verdict = "bad"
	VerdictUnclear Verdict = "unclear"
)

// LabelUnclear is reported when the evidence supports neither label.
const LabelUnclear = "UNCLEAR"

// Contribution is a feature's signed push toward the bad label.
type Contribution struct {
	ID    string  `json:"uuid"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Result is a policy's decision for one sample.
type Result struct {
	Label        string               `json:"label"`
	Verdict      Verdict              `json:"verdict"`
	Confidence   float64              `json:"confidence"`
	Contributing []Contribution       `json:"contributing_features,omitempty"`
	Strategy     config.Strategy      `json:"strategy"`
	Bucket       string               `json:"bucket,omitempty"`
	Trigger      string               `json:"trigger,omitempty"`
	Probability  *float64             `json:"probability,omitempty"`
	JudgeScore   *float64             `json:"judge_score,omitempty"`
	Explanation  *explain.Explanation `json:"explanation,omitempty"`
}

// Input is everything a policy may look at for one sample.
type Input struct {
	Text        string
	Activations features.Map
	Scores      scoring.Result
}

// Policy classifies one sample.
type Policy interface {
	Name() config.Strategy
	Classify(ctx context.Context, in Input) (*Result, error)
}

// Deps are the collaborators a policy may need. Only the selected policy's
// dependencies have to be set.
type Deps struct {
	Directions *direction.Set
	Model      *classifier.Model
	Judge      judge.Provider
}

// New selects the policy for cfg.Strategy.
func New(cfg *config.WatchConfig, deps Deps) (Policy, error) {
	switch cfg.Strategy {
	case config.StrategyAnyBadFeature:
		if deps.Directions == nil {
			return nil, fmt.Errorf("%w: %s needs resolved directions", ErrClassification, cfg.Strategy)
		}
		return &anyBadFeature{cfg: cfg, set: deps.Directions}, nil
	case config.StrategyRatio:
		return &ratio{cfg: cfg}, nil
	case config.StrategyQuality:
		return &quality{cfg: cfg}, nil
	case config.StrategyLogistic:
		if deps.Model == nil {
			return nil, fmt.Errorf("%w: logistic_regression needs a trained model at %s", ErrClassification, cfg.ClassifierPath())
		}
		if err := deps.Model.Check(deps.Directions); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrClassification, cfg.ClassifierPath(), err)
		}
		return &logistic{cfg: cfg, model: deps.Model}, nil
	case config.StrategyClaudePrompt:
		if deps.Judge == nil {
			return nil, fmt.Errorf("%w: claude_prompt needs a judge", ErrClassification)
		}
		return &claudePrompt{cfg: cfg, judge: deps.Judge}, nil
	case config.StrategyExpression:
		return newExpression(cfg)
	}
	return nil, fmt.Errorf("%w: unknown alert_strategy %q", config.ErrConfig, cfg.Strategy)
}

func labelFor(cfg *config.WatchConfig, v Verdict) string {
	switch v {
	case VerdictBad:
		return cfg.BadLabel
	case VerdictGood:
		return cfg.GoodLabel
	}
	return LabelUnclear
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// contributions lists active features as signed pushes toward bad: bad
// features count positive, good features negative.
func contributions(r scoring.Result) []Contribution {
	out := make([]Contribution, 0, len(r.Active))
	for _, a := range r.Active {
		v := a.Activation
		if a.Polarity == direction.Good {
			v = -v
		}
		out = append(out, Contribution{ID: a.ID, Label: a.Label, Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

// shares returns each polarity's fraction of the total score, or zeros when
// there is no signal.
func shares(s scoring.ScorePair) (good, bad float64) {
	total := s.Total()
	if total <= 0 {
		return 0, 0
	}
	return s.Good / total, s.Bad / total
}
