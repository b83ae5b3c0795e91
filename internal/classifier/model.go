// Package classifier holds the logistic-regression model used by the
// logistic_regression strategy: training, persistence and attribution.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/features"
)

// FormatVersion is bumped whenever the artifact layout changes incompatibly.
const FormatVersion = 1

// ErrArtifact marks a missing or unusable model artifact.
var ErrArtifact = errors.New("classifier artifact unusable")

type Feature struct {
	UUID     string             `json:"uuid"`
	Label    string             `json:"label"`
	Polarity direction.Polarity `json:"polarity"`
}

// Model is a trained P(bad) = sigmoid(w·x + b) over Features, in order.
type Model struct {
	FormatVersion int       `json:"format_version"`
	TrainedAt     string    `json:"trained_at"`
	Model         string    `json:"model"`
	Features      []Feature `json:"features"`
	Coefficients  []float64 `json:"coefficients"`
	Intercept     float64   `json:"intercept"`
	Baseline      []float64 `json:"baseline,omitempty"`
	GoodExamples  int       `json:"good_examples"`
	BadExamples   int       `json:"bad_examples"`
	TrainAccuracy float64   `json:"train_accuracy"`
}

// Attribution is one feature's additive push on the logit.
type Attribution struct {
	ID       string             `json:"uuid"`
	Label    string             `json:"label"`
	Polarity direction.Polarity `json:"polarity"`
	Value    float64            `json:"value"`
}

// Vector lays activations out in model feature order; missing features are 0.
func (m *Model) Vector(acts features.Map) []float64 {
	x := make([]float64, len(m.Features))
	for i, f := range m.Features {
		x[i] = acts[f.UUID]
	}
	return x
}

// Logit is w·x + b.
func (m *Model) Logit(x []float64) float64 {
	z := m.Intercept
	for i, w := range m.Coefficients {
		z += w * x[i]
	}
	return z
}

// Probability is P(bad | x).
func (m *Model) Probability(x []float64) float64 {
	return sigmoid(m.Logit(x))
}

// BaselineLogit is the logit at the expected feature vector.
func (m *Model) BaselineLogit() float64 {
	return m.Logit(m.baseline())
}

func (m *Model) baseline() []float64 {
	if len(m.Baseline) == len(m.Features) {
		return m.Baseline
	}
	return make([]float64, len(m.Features))
}

// Attribute computes w_i·(x_i − E[x_i]) for every feature, sorted by
// magnitude. The values sum to Logit(x) − BaselineLogit().
func (m *Model) Attribute(x []float64) []Attribution {
	base := m.baseline()
	out := make([]Attribution, len(m.Features))
	for i, f := range m.Features {
		out[i] = Attribution{
			ID:       f.UUID,
			Label:    f.Label,
			Polarity: f.Polarity,
			Value:    m.Coefficients[i] * (x[i] - base[i]),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

// Check verifies the artifact is internally consistent and shares at least
// one feature with the resolved directions.
func (m *Model) Check(set *direction.Set) error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: format_version %d, expected %d", ErrArtifact, m.FormatVersion, FormatVersion)
	}
	if len(m.Features) == 0 || len(m.Coefficients) != len(m.Features) {
		return fmt.Errorf("%w: %d features but %d coefficients", ErrArtifact, len(m.Features), len(m.Coefficients))
	}
	if len(m.Baseline) != 0 && len(m.Baseline) != len(m.Features) {
		return fmt.Errorf("%w: baseline has %d entries for %d features", ErrArtifact, len(m.Baseline), len(m.Features))
	}
	if set == nil {
		return nil
	}
	for _, f := range m.Features {
		if _, ok := set.Lookup(f.UUID); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: none of the model's features are among the resolved directions", ErrArtifact)
}

// Save writes the artifact atomically.
func Save(path string, m *Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), 0644)
}

// Load reads an artifact without checking it against any direction set.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no trained model at %s (run 'claudewatch train')", ErrArtifact, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifact, path, err)
	}
	return &m, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Logit is the inverse of the logistic function.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
