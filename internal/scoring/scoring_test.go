package scoring

import (
	"math"
	"testing"

	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/features"
)

func testSet(t *testing.T) *direction.Set {
	t.Helper()
	set, err := direction.NewSet([]direction.Direction{
		{ID: "g1", Label: "Careful", Polarity: direction.Good},
		{ID: "g2", Label: "Precise", Polarity: direction.Good},
		{ID: "b1", Label: "Flattery", Polarity: direction.Bad},
		{ID: "b2", Label: "Capitulation", Polarity: direction.Bad},
	}, direction.SourceDirect, "")
	if err != nil {
		t.Fatalf("NewSet error: %v", err)
	}
	return set
}

func TestScore(t *testing.T) {
	set := testSet(t)
	tests := []struct {
		name      string
		acts      features.Map
		threshold float64
		wantGood  float64
		wantBad   float64
		wantLen   int
	}{
		{"empty", features.Map{}, 0.02, 0, 0, 0},
		{"sums above floor", features.Map{"g1": 0.3, "g2": 0.2, "b1": 0.5}, 0.02, 0.5, 0.5, 3},
		{"noise floor drops weak features", features.Map{"g1": 0.01, "b1": 0.02, "b2": 0.4}, 0.02, 0, 0.4, 1},
		{"negative activations do not subtract", features.Map{"g1": 0.3, "g2": -0.8, "b1": -0.5}, 0.02, 0.3, 0, 3},
		{"unknown features ignored", features.Map{"x": 5, "b2": 0.1}, 0.02, 0, 0.1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(set, tt.acts, tt.threshold)
			if math.Abs(r.Scores.Good-tt.wantGood) > 1e-9 || math.Abs(r.Scores.Bad-tt.wantBad) > 1e-9 {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.wantGood, tt.wantBad, r.Scores.Good, r.Scores.Bad)
			}
			if r.Scores.Good < 0 || r.Scores.Bad < 0 {
				t.Errorf("scores must be non-negative: %+v", r.Scores)
			}
			if len(r.Active) != tt.wantLen {
				t.Errorf("expected %d active features, got %d", tt.wantLen, len(r.Active))
			}
		})
	}
}

func TestScoreOrdersActiveByMagnitude(t *testing.T) {
	r := Score(testSet(t), features.Map{"g1": 0.1, "b1": -0.6, "b2": 0.3}, 0.02)
	if len(r.Active) != 3 || r.Active[0].ID != "b1" || r.Active[1].ID != "b2" {
		t.Errorf("unexpected order %+v", r.Active)
	}
	if r.MaxBad != 0.3 || r.MaxGood != 0.1 {
		t.Errorf("unexpected peaks good=%v bad=%v", r.MaxGood, r.MaxBad)
	}
}

func TestRatio(t *testing.T) {
	if got := (ScorePair{Good: 0, Bad: 1}).Ratio(1e-6); math.Abs(got-1e6) > 1e-3 {
		t.Errorf("expected epsilon floor, got %v", got)
	}
	if got := (ScorePair{Good: 2, Bad: 1}).Ratio(1e-6); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
