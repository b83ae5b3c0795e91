package features

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, ids []string) ([]Activation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[text]++
	if f.fail[text] {
		return nil, errors.New("boom")
	}
	return []Activation{{ID: "len", Label: "Length", Value: float64(len(text))}}, nil
}

func TestCachedExtractor_HitAndMiss(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache", "activations.db"))
	if err != nil {
		t.Fatalf("OpenCache error: %v", err)
	}
	defer func() { _ = cache.Close() }()

	inner := &fakeExtractor{}
	ex := &CachedExtractor{Next: inner, Cache: cache, Model: "m"}
	ctx := context.Background()

	first, err := ex.Extract(ctx, "abc", nil)
	if err != nil {
		t.Fatalf("first Extract error: %v", err)
	}
	second, err := ex.Extract(ctx, "abc", nil)
	if err != nil {
		t.Fatalf("second Extract error: %v", err)
	}
	if inner.calls["abc"] != 1 {
		t.Errorf("expected one upstream call, got %d", inner.calls["abc"])
	}
	if first[0].Value != second[0].Value || second[0].Label != "Length" {
		t.Errorf("cached value differs: %+v vs %+v", first, second)
	}
	hits, misses := ex.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}

	if _, err := ex.Extract(ctx, "abc", []string{"other"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls["abc"] != 2 {
		t.Errorf("different feature set must miss the cache, got %d calls", inner.calls["abc"])
	}
	n, err := cache.Len(ctx)
	if err != nil || n != 2 {
		t.Errorf("expected 2 cache entries, got %d (%v)", n, err)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("m", "text", []string{"b", "a"})
	b := CacheKey("m", "text", []string{"a", "b"})
	if a != b {
		t.Error("feature order must not change the key")
	}
	if CacheKey("m2", "text", nil) == CacheKey("m", "text", nil) {
		t.Error("model must be part of the key")
	}
}

func TestExtractAll(t *testing.T) {
	inner := &fakeExtractor{fail: map[string]bool{"bb": true}}
	texts := []string{"a", "bb", "ccc", "dddd"}

	results, err := ExtractAll(context.Background(), inner, texts, nil, 2)
	if err != nil {
		t.Fatalf("ExtractAll error: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	if results[1] != nil {
		t.Errorf("failed text should leave a nil slot, got %+v", results[1])
	}
	for _, i := range []int{0, 2, 3} {
		if got := ToMap(results[i])["len"]; got != float64(len(texts[i])) {
			t.Errorf("result %d out of order: got %v", i, got)
		}
	}
}

func TestExtractAll_AllFail(t *testing.T) {
	inner := &fakeExtractor{fail: map[string]bool{"x": true, "y": true}}
	_, err := ExtractAll(context.Background(), inner, []string{"x", "y"}, nil, 4)
	if !errors.Is(err, ErrFeatureExtraction) {
		t.Fatalf("expected ErrFeatureExtraction, got %v", err)
	}
	if !strings.Contains(err.Error(), "all 2 examples failed") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
