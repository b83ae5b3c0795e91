package classifier

import (
	"math"
	"sort"
)

// ThresholdStats is the classifier's behavior at one decision threshold.
type ThresholdStats struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Alerts    int     `json:"alerts"`
}

// Report summarizes a training run.
type Report struct {
	GoodExamples int              `json:"good_examples"`
	BadExamples  int              `json:"bad_examples"`
	Accuracy     float64          `json:"train_accuracy"`
	Ranking      []Attribution    `json:"coefficients"`
	Thresholds   []ThresholdStats `json:"thresholds"`
}

// DefaultThresholds are the decision points reported after training.
var DefaultThresholds = []float64{0.5, 0.6, 0.7, 0.8, 0.9}

// Evaluate scores the model on labeled vectors (bad = true).
func (m *Model) Evaluate(rows [][]float64, bad []bool, thresholds []float64) Report {
	r := Report{
		GoodExamples: m.GoodExamples,
		BadExamples:  m.BadExamples,
		Accuracy:     m.TrainAccuracy,
		Ranking:      m.Ranking(),
	}
	probs := make([]float64, len(rows))
	for i, x := range rows {
		probs[i] = m.Probability(x)
	}
	for _, th := range thresholds {
		var tp, fp, fn int
		for i, p := range probs {
			switch {
			case p > th && bad[i]:
				tp++
			case p > th && !bad[i]:
				fp++
			case p <= th && bad[i]:
				fn++
			}
		}
		st := ThresholdStats{Threshold: th, Alerts: tp + fp}
		if tp+fp > 0 {
			st.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			st.Recall = float64(tp) / float64(tp+fn)
		}
		r.Thresholds = append(r.Thresholds, st)
	}
	return r
}

// Ranking lists coefficients by magnitude. Positive values push toward bad.
func (m *Model) Ranking() []Attribution {
	out := make([]Attribution, len(m.Features))
	for i, f := range m.Features {
		out[i] = Attribution{ID: f.UUID, Label: f.Label, Polarity: f.Polarity, Value: m.Coefficients[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}
