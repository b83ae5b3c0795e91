// Package scoring aggregates a sample's activations into good and bad scores.
package scoring

import (
	"math"
	"sort"

	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/features"
)

// ScorePair holds the summed evidence for each polarity. Both are >= 0.
type ScorePair struct {
	Good float64 `json:"good_score"`
	Bad  float64 `json:"bad_score"`
}

// Ratio is bad/good with good floored at epsilon.
func (s ScorePair) Ratio(epsilon float64) float64 {
	return s.Bad / math.Max(s.Good, epsilon)
}

// Total is good+bad.
func (s ScorePair) Total() float64 {
	return s.Good + s.Bad
}

// ActiveFeature is a direction whose activation cleared the noise floor.
type ActiveFeature struct {
	ID         string             `json:"uuid"`
	Label      string             `json:"label"`
	Polarity   direction.Polarity `json:"polarity"`
	Activation float64            `json:"activation"`
}

// Result is the scorer output for one sample.
type Result struct {
	Scores  ScorePair       `json:"scores"`
	Active  []ActiveFeature `json:"activated_features"`
	MaxGood float64         `json:"max_good"`
	MaxBad  float64         `json:"max_bad"`
}

// Score sums the activations of each polarity's directions whose magnitude
// exceeds threshold. Negative activations never lower a score.
func Score(set *direction.Set, acts features.Map, threshold float64) Result {
	var r Result
	sum := func(dirs []direction.Direction) (total, peak float64) {
		for _, d := range dirs {
			a := acts[d.ID]
			if math.Abs(a) <= threshold {
				continue
			}
			r.Active = append(r.Active, ActiveFeature{ID: d.ID, Label: d.Label, Polarity: d.Polarity, Activation: a})
			if a > 0 {
				total += a
				peak = math.Max(peak, a)
			}
		}
		return total, peak
	}
	r.Scores.Good, r.MaxGood = sum(set.Good)
	r.Scores.Bad, r.MaxBad = sum(set.Bad)

	sort.SliceStable(r.Active, func(i, j int) bool {
		return math.Abs(r.Active[i].Activation) > math.Abs(r.Active[j].Activation)
	})
	return r
}
