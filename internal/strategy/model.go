package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/explain"
	"github.com/gzhole/claudewatch/internal/judge"
)

// logistic applies a trained classifier.
type logistic struct {
	cfg   *config.WatchConfig
	model *classifier.Model
}

func (s *logistic) Name() config.Strategy { return config.StrategyLogistic }

func (s *logistic) Classify(ctx context.Context, in Input) (*Result, error) {
	x := s.model.Vector(in.Activations)
	p := s.model.Probability(x)

	r := &Result{Strategy: s.Name(), Confidence: p, Probability: &p}
	if p > s.cfg.LogisticThreshold {
		r.Verdict = VerdictBad
		r.Trigger = fmt.Sprintf("P(%s) %.3f > %.3f", s.cfg.BadLabel, p, s.cfg.LogisticThreshold)
	} else {
		r.Verdict = VerdictGood
		r.Trigger = fmt.Sprintf("P(%s) %.3f <= %.3f", s.cfg.BadLabel, p, s.cfg.LogisticThreshold)
	}
	r.Label = labelFor(s.cfg, r.Verdict)

	r.Explanation = explain.Logistic(s.model, x, s.cfg.ExplainTopK, s.cfg.GoodLabel, s.cfg.BadLabel)
	for _, a := range r.Explanation.Attributions {
		r.Contributing = append(r.Contributing, Contribution{ID: a.ID, Label: a.Label, Value: a.Value})
	}
	return r, nil
}

// claudePrompt asks an external judge instead of looking at features.
type claudePrompt struct {
	cfg   *config.WatchConfig
	judge judge.Provider
}

func (s *claudePrompt) Name() config.Strategy { return config.StrategyClaudePrompt }

func (s *claudePrompt) Classify(ctx context.Context, in Input) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JudgeTimeout())
	defer cancel()

	resp, err := s.judge.Rate(ctx, judge.Request{Prompt: s.cfg.JudgePrompt(), Text: in.Text})
	if err != nil {
		if errors.Is(err, judge.ErrJudge) {
			return nil, fmt.Errorf("%w: %w", ErrClassification, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrClassification, s.judge.Name(), err)
	}

	score := resp.Score
	r := &Result{Strategy: s.Name(), Confidence: clamp01(score), JudgeScore: &score}
	if score > s.cfg.ClaudeThreshold {
		r.Verdict = VerdictBad
		r.Trigger = fmt.Sprintf("%s scored %.2f > %.2f", s.judge.Name(), score, s.cfg.ClaudeThreshold)
	} else {
		r.Verdict = VerdictGood
		r.Trigger = fmt.Sprintf("%s scored %.2f <= %.2f", s.judge.Name(), score, s.cfg.ClaudeThreshold)
	}
	r.Label = labelFor(s.cfg, r.Verdict)
	r.Explanation = explain.Trigger(r.Trigger)
	return r, nil
}
