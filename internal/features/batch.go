package features

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ExtractAll runs Extract over texts with at most limit requests in flight.
// Results are indexed like texts. A text whose extraction fails is logged and
// left nil; the call only fails when the context ends or nothing succeeded.
func ExtractAll(ctx context.Context, ex Extractor, texts []string, ids []string, limit int) ([][]Activation, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([][]Activation, len(texts))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, text := range texts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			acts, err := ex.Extract(gctx, text, ids)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				slog.WarnContext(gctx, "skipping example", "index", i, "error", err)
				return nil
			}
			if acts == nil {
				acts = []Activation{}
			}
			results[i] = acts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeatureExtraction, err)
	}
	if len(texts) > 0 && int(failed.Load()) == len(texts) {
		return nil, fmt.Errorf("%w: all %d examples failed", ErrFeatureExtraction, len(texts))
	}
	return results, nil
}
