package features

import (
	"context"
	"errors"
)

// ErrFeatureExtraction is returned when activations could not be obtained.
var ErrFeatureExtraction = errors.New("feature extraction failed")

// Activation is one feature's response to a text.
type Activation struct {
	ID    string  `json:"uuid"`
	Label string  `json:"label"`
	Value float64 `json:"activation"`
}

// Map holds one sample's activations keyed by feature id.
type Map map[string]float64

// ToMap drops labels, keeping the strongest value when an id repeats.
func ToMap(acts []Activation) Map {
	m := make(Map, len(acts))
	for _, a := range acts {
		if v, ok := m[a.ID]; !ok || a.Value > v {
			m[a.ID] = a.Value
		}
	}
	return m
}

// Extractor turns text into feature activations. An empty ids slice asks for
// every feature the service knows about.
type Extractor interface {
	Extract(ctx context.Context, text string, ids []string) ([]Activation, error)
}
