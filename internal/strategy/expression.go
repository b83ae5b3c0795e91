package strategy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/explain"
)

// expression alerts when a user-supplied CEL condition over the scores holds,
// e.g. `bad_score > 0.5 && ratio >= 1.5`.
type expression struct {
	cfg     *config.WatchConfig
	program cel.Program
}

func newExpression(cfg *config.WatchConfig) (*expression, error) {
	if cfg.AlertExpression == "" {
		return nil, fmt.Errorf("%w: alert_expression is empty", config.ErrConfig)
	}
	env, err := cel.NewEnv(
		cel.Variable("good_score", cel.DoubleType),
		cel.Variable("bad_score", cel.DoubleType),
		cel.Variable("ratio", cel.DoubleType),
		cel.Variable("max_good", cel.DoubleType),
		cel.Variable("max_bad", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating CEL environment: %v", config.ErrConfig, err)
	}
	ast, issues := env.Compile(cfg.AlertExpression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: alert_expression: %v", config.ErrConfig, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: alert_expression must be boolean, got %s", config.ErrConfig, ast.OutputType())
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: alert_expression: %v", config.ErrConfig, err)
	}
	return &expression{cfg: cfg, program: p}, nil
}

func (s *expression) Name() config.Strategy { return config.StrategyExpression }

func (s *expression) Classify(ctx context.Context, in Input) (*Result, error) {
	sc := in.Scores.Scores
	out, _, err := s.program.ContextEval(ctx, map[string]any{
		"good_score": sc.Good,
		"bad_score":  sc.Bad,
		"ratio":      sc.Ratio(Epsilon),
		"max_good":   in.Scores.MaxGood,
		"max_bad":    in.Scores.MaxBad,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: evaluating alert_expression: %v", ErrClassification, err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("%w: alert_expression returned %v", ErrClassification, out.Value())
	}

	goodShare, badShare := shares(sc)
	r := &Result{Strategy: s.Name(), Contributing: contributions(in.Scores)}
	if fired {
		r.Verdict = VerdictBad
		r.Confidence = badShare
		r.Trigger = fmt.Sprintf("%s held (good %.3f, bad %.3f)", s.cfg.AlertExpression, sc.Good, sc.Bad)
	} else {
		r.Verdict = VerdictGood
		r.Confidence = goodShare
		r.Trigger = fmt.Sprintf("%s did not hold (good %.3f, bad %.3f)", s.cfg.AlertExpression, sc.Good, sc.Bad)
	}
	r.Label = labelFor(s.cfg, r.Verdict)
	r.Explanation = explain.Trigger(r.Trigger)
	return r, nil
}
