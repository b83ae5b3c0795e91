package direction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/examples"
	"github.com/gzhole/claudewatch/internal/features"
)

// Contrast derives directions from per-example activations: for each feature
// the mean good activation minus the mean bad activation, with absent features
// counted as zero. Positive differences become good directions, negative ones
// bad, and each polarity keeps its topK strongest.
func Contrast(good, bad [][]features.Activation, topK int) []Direction {
	labels := map[string]string{}
	for _, set := range [][][]features.Activation{good, bad} {
		for _, acts := range set {
			for _, a := range acts {
				if _, ok := labels[a.ID]; !ok || labels[a.ID] == "" {
					labels[a.ID] = a.Label
				}
			}
		}
	}
	if len(labels) == 0 || len(good) == 0 || len(bad) == 0 {
		return nil
	}

	ids := make([]string, 0, len(labels))
	for id := range labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	goodMeans := columnMeans(activationMatrix(good, ids))
	badMeans := columnMeans(activationMatrix(bad, ids))

	var goodDirs, badDirs []Direction
	for j, id := range ids {
		diff := goodMeans[j] - badMeans[j]
		if diff == 0 {
			continue
		}
		w := diff
		label := labels[id]
		if label == "" {
			label = "Feature " + shortID(id)
		}
		d := Direction{ID: id, Label: label, Weight: &w}
		if diff > 0 {
			d.Polarity = Good
			goodDirs = append(goodDirs, d)
		} else {
			d.Polarity = Bad
			badDirs = append(badDirs, d)
		}
	}

	out := topByMagnitude(goodDirs, topK)
	return append(out, topByMagnitude(badDirs, topK)...)
}

func activationMatrix(samples [][]features.Activation, ids []string) *mat.Dense {
	col := make(map[string]int, len(ids))
	for j, id := range ids {
		col[id] = j
	}
	m := mat.NewDense(len(samples), len(ids), nil)
	for i, acts := range samples {
		for id, v := range features.ToMap(acts) {
			m.Set(i, col[id], v)
		}
	}
	return m
}

func columnMeans(m *mat.Dense) []float64 {
	_, c := m.Dims()
	means := make([]float64, c)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, m), nil)
	}
	return means
}

func topByMagnitude(dirs []Direction, k int) []Direction {
	sort.SliceStable(dirs, func(i, j int) bool {
		a, b := math.Abs(*dirs[i].Weight), math.Abs(*dirs[j].Weight)
		if a != b {
			return a > b
		}
		return dirs[i].ID < dirs[j].ID
	})
	if k > 0 && len(dirs) > k {
		dirs = dirs[:k]
	}
	return dirs
}

// Generate loads both example sets, balances them, extracts activations for
// every feature and contrasts them. Nothing is written to disk.
func Generate(ctx context.Context, cfg *config.WatchConfig, ex features.Extractor) (*Set, *File, error) {
	if !cfg.HasExamples() {
		return nil, nil, fmt.Errorf("%w: good_examples_path and bad_examples_path are required to generate vectors", config.ErrConfig)
	}
	goodTexts, err := examples.LoadTexts(cfg.GoodExamplesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: good examples: %v", ErrVectorResolution, err)
	}
	badTexts, err := examples.LoadTexts(cfg.BadExamplesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad examples: %v", ErrVectorResolution, err)
	}
	goodTexts, badTexts = examples.Balance(goodTexts, badTexts)
	slog.InfoContext(ctx, "extracting example activations", "good", len(goodTexts), "bad", len(badTexts))

	goodActs, err := features.ExtractAll(ctx, ex, goodTexts, nil, cfg.ExtractionConcurrency)
	if err != nil {
		return nil, nil, err
	}
	badActs, err := features.ExtractAll(ctx, ex, badTexts, nil, cfg.ExtractionConcurrency)
	if err != nil {
		return nil, nil, err
	}
	goodActs, badActs = balanceActivations(compact(goodActs), compact(badActs))

	dirs := Contrast(goodActs, badActs, cfg.TopK)
	set, err := NewSet(dirs, SourceExamples, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: extraction service returned no discriminative features", ErrVectorResolution)
	}
	return set, NewFile(set, cfg.Model, cfg.GoodExamplesPath, cfg.BadExamplesPath), nil
}

func compact(results [][]features.Activation) [][]features.Activation {
	out := results[:0:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func balanceActivations(good, bad [][]features.Activation) ([][]features.Activation, [][]features.Activation) {
	n := min(len(good), len(bad))
	return good[:n], bad[:n]
}
