package strategy

import (
	"context"
	"fmt"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/explain"
)

// anyBadFeature alerts when a single bad direction fires above bad_threshold.
type anyBadFeature struct {
	cfg *config.WatchConfig
	set *direction.Set
}

func (s *anyBadFeature) Name() config.Strategy { return config.StrategyAnyBadFeature }

func (s *anyBadFeature) Classify(ctx context.Context, in Input) (*Result, error) {
	var trigger *direction.Direction
	var peak float64
	var fired []Contribution
	for i, d := range s.set.Bad {
		a := in.Activations[d.ID]
		if a <= s.cfg.BadThreshold {
			continue
		}
		fired = append(fired, Contribution{ID: d.ID, Label: d.Label, Value: a})
		if trigger == nil || a > peak {
			trigger, peak = &s.set.Bad[i], a
		}
	}

	r := &Result{Strategy: s.Name(), Contributing: contributions(in.Scores)}
	if trigger == nil {
		r.Verdict = VerdictGood
		r.Confidence = clamp01(1 - in.Scores.MaxBad)
		r.Trigger = fmt.Sprintf("no bad feature above %.3f", s.cfg.BadThreshold)
	} else {
		r.Verdict = VerdictBad
		r.Confidence = clamp01(peak)
		r.Trigger = fmt.Sprintf("bad feature %q activated at %.3f > %.3f", trigger.Label, peak, s.cfg.BadThreshold)
		if len(fired) > 1 {
			r.Trigger += fmt.Sprintf(" (%d bad features fired)", len(fired))
		}
	}
	r.Label = labelFor(s.cfg, r.Verdict)
	r.Explanation = explain.Trigger(r.Trigger)
	return r, nil
}

// Ratio buckets, from least to most severe.
const (
	BucketGood       = "GOOD"
	BucketAcceptable = "ACCEPTABLE"
	BucketConcerning = "CONCERNING"
	BucketHarmful    = "HARMFUL"
)

// Epsilon floors the good score when forming the ratio.
const Epsilon = 1e-6

// Bucket places a bad/good ratio. Each boundary belongs to the more severe side.
func Bucket(ratio, alertRatio float64) string {
	switch {
	case ratio >= alertRatio:
		return BucketHarmful
	case ratio >= 1:
		return BucketConcerning
	case ratio >= 0.5:
		return BucketAcceptable
	default:
		return BucketGood
	}
}

// ratio compares bad evidence against good evidence.
type ratio struct {
	cfg *config.WatchConfig
}

func (s *ratio) Name() config.Strategy { return config.StrategyRatio }

func (s *ratio) Classify(ctx context.Context, in Input) (*Result, error) {
	sc := in.Scores.Scores
	r := &Result{Strategy: s.Name(), Contributing: contributions(in.Scores)}

	if sc.Good < s.cfg.GoodThreshold && sc.Bad < s.cfg.BadThreshold {
		r.Verdict = VerdictUnclear
		r.Label = LabelUnclear
		r.Trigger = fmt.Sprintf("insufficient signal: good %.3f < %.3f and bad %.3f < %.3f",
			sc.Good, s.cfg.GoodThreshold, sc.Bad, s.cfg.BadThreshold)
		r.Explanation = explain.Trigger(r.Trigger)
		return r, nil
	}

	q := sc.Ratio(Epsilon)
	r.Bucket = Bucket(q, s.cfg.AlertRatio)
	goodShare, badShare := shares(sc)
	switch r.Bucket {
	case BucketConcerning, BucketHarmful:
		r.Verdict = VerdictBad
		r.Confidence = badShare
	default:
		r.Verdict = VerdictGood
		r.Confidence = goodShare
	}
	r.Label = labelFor(s.cfg, r.Verdict)
	r.Trigger = fmt.Sprintf("bad/good ratio %.3f (bad %.3f, good %.3f) is %s", q, sc.Bad, sc.Good, r.Bucket)
	r.Explanation = explain.Trigger(r.Trigger)
	return r, nil
}

// quality judges overall balance: bad only when bad evidence outweighs good
// evidence scaled by alert_ratio.
type quality struct {
	cfg *config.WatchConfig
}

func (s *quality) Name() config.Strategy { return config.StrategyQuality }

func (s *quality) Classify(ctx context.Context, in Input) (*Result, error) {
	sc := in.Scores.Scores
	r := &Result{Strategy: s.Name(), Contributing: contributions(in.Scores)}
	goodShare, badShare := shares(sc)

	switch {
	case sc.Total() == 0:
		r.Verdict = VerdictUnclear
		r.Trigger = "no activated features"
	case sc.Bad > sc.Good*s.cfg.AlertRatio:
		r.Verdict = VerdictBad
		r.Confidence = badShare
		r.Trigger = fmt.Sprintf("bad %.3f exceeds good %.3f x %.2f", sc.Bad, sc.Good, s.cfg.AlertRatio)
	default:
		r.Verdict = VerdictGood
		r.Confidence = goodShare
		r.Trigger = fmt.Sprintf("bad %.3f within good %.3f x %.2f", sc.Bad, sc.Good, s.cfg.AlertRatio)
	}
	r.Label = labelFor(s.cfg, r.Verdict)
	r.Explanation = explain.Trigger(r.Trigger)
	return r, nil
}
