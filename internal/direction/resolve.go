package direction

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/features"
)

// Resolve picks directions from the first available source, in order:
// direct_vectors, _vector_source, then example sets. Example-derived
// directions are read from their cache file when present and otherwise
// generated with ex and saved there. Sources are never mixed.
func Resolve(ctx context.Context, cfg *config.WatchConfig, ex features.Extractor) (*Set, error) {
	if !cfg.DirectVectors.Empty() {
		return fromDirect(cfg.DirectVectors)
	}

	if cfg.VectorSource != "" {
		set, _, err := Load(cfg.VectorSourcePath())
		return set, err
	}

	if cfg.HasExamples() {
		path := cfg.DerivedVectorPath()
		if _, err := os.Stat(path); err == nil {
			set, _, err := Load(path)
			if err != nil {
				return nil, err
			}
			set.Source = SourceExamples
			return set, nil
		}
		if ex == nil {
			return nil, fmt.Errorf("%w: %s not generated and no extractor available", ErrVectorResolution, path)
		}

		slog.InfoContext(ctx, "generating directions from examples", "output", path)
		set, file, err := Generate(ctx, cfg, ex)
		if err != nil {
			return nil, err
		}
		if err := Save(path, file); err != nil {
			return nil, fmt.Errorf("%w: saving %s: %v", ErrVectorResolution, path, err)
		}
		set.Path = path
		return set, nil
	}

	return nil, fmt.Errorf("%w: no direction source; set direct_vectors, _vector_source, or good_examples_path and bad_examples_path", config.ErrConfig)
}

func fromDirect(dv *config.DirectVectors) (*Set, error) {
	var dirs []Direction
	add := func(specs []config.VectorSpec, pol Polarity, prefix string) {
		for _, v := range specs {
			label := v.Label
			if label == "" {
				label = fmt.Sprintf("%s feature %s", prefix, shortID(v.UUID))
			}
			dirs = append(dirs, Direction{ID: v.UUID, Label: label, Polarity: pol, Weight: v.Weight})
		}
	}
	add(dv.Good, Good, "Good")
	add(dv.Bad, Bad, "Bad")
	return NewSet(dirs, SourceDirect, "")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
