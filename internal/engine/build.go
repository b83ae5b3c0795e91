package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/examples"
	"github.com/gzhole/claudewatch/internal/features"
)

// GenerateVectors derives directions from the example sets and writes them to
// output, or to the derived vector path when output is empty. An existing
// file is replaced.
func (e *Engine) GenerateVectors(ctx context.Context, output string) (*direction.Set, string, error) {
	if output == "" {
		output = e.cfg.DerivedVectorPath()
	}
	set, file, err := direction.Generate(ctx, e.cfg, lazyExtractor{e})
	if err != nil {
		return nil, "", err
	}
	if err := direction.Save(output, file); err != nil {
		return nil, "", fmt.Errorf("%w: saving %s: %v", direction.ErrVectorResolution, output, err)
	}
	set.Path = output
	return set, output, nil
}

// Train fits the logistic classifier over the resolved directions using the
// example sets, writes it to output (or the configured classifier path) and
// reports its fit on the training data.
func (e *Engine) Train(ctx context.Context, output string) (*classifier.Model, classifier.Report, error) {
	if !e.cfg.HasExamples() {
		return nil, classifier.Report{}, fmt.Errorf("%w: good_examples_path and bad_examples_path are required to train", config.ErrConfig)
	}
	if output == "" {
		output = e.cfg.ClassifierPath()
	}

	set := e.directions
	if set == nil {
		var err error
		set, err = direction.Resolve(ctx, e.cfg, lazyExtractor{e})
		if err != nil {
			return nil, classifier.Report{}, err
		}
	}

	goodTexts, err := examples.LoadTexts(e.cfg.GoodExamplesPath)
	if err != nil {
		return nil, classifier.Report{}, fmt.Errorf("%w: good examples: %v", config.ErrConfig, err)
	}
	badTexts, err := examples.LoadTexts(e.cfg.BadExamplesPath)
	if err != nil {
		return nil, classifier.Report{}, fmt.Errorf("%w: bad examples: %v", config.ErrConfig, err)
	}
	goodTexts, badTexts = examples.Balance(goodTexts, badTexts)
	slog.InfoContext(ctx, "extracting training activations", "good", len(goodTexts), "bad", len(badTexts), "features", set.Len())

	good, err := e.extractMaps(ctx, goodTexts, set.IDs())
	if err != nil {
		return nil, classifier.Report{}, err
	}
	bad, err := e.extractMaps(ctx, badTexts, set.IDs())
	if err != nil {
		return nil, classifier.Report{}, err
	}

	model, err := classifier.Fit(set, good, bad, e.cfg.Model, classifier.Options{})
	if err != nil {
		return nil, classifier.Report{}, err
	}

	var rows [][]float64
	var labels []bool
	for _, acts := range good {
		rows = append(rows, model.Vector(acts))
		labels = append(labels, false)
	}
	for _, acts := range bad {
		rows = append(rows, model.Vector(acts))
		labels = append(labels, true)
	}
	report := model.Evaluate(rows, labels, classifier.DefaultThresholds)

	if err := classifier.Save(output, model); err != nil {
		return nil, classifier.Report{}, fmt.Errorf("%w: saving %s: %v", classifier.ErrArtifact, output, err)
	}
	return model, report, nil
}

func (e *Engine) extractMaps(ctx context.Context, texts, ids []string) ([]features.Map, error) {
	results, err := features.ExtractAll(ctx, lazyExtractor{e}, texts, ids, e.cfg.ExtractionConcurrency)
	if err != nil {
		return nil, err
	}
	out := make([]features.Map, 0, len(results))
	for _, acts := range results {
		if acts != nil {
			out = append(out, features.ToMap(acts))
		}
	}
	return out, nil
}
