package direction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/features"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	w := -0.42
	set, err := NewSet([]Direction{
		{ID: "g-1", Label: "Careful reasoning", Polarity: Good},
		{ID: "b-1", Label: "Excessive praise", Polarity: Bad, Weight: &w},
		{ID: "b-2", Label: "Agreeing with user", Polarity: Bad},
	}, SourceExamples, "")
	if err != nil {
		t.Fatalf("NewSet error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vectors", "v.json")
	if err := Save(path, NewFile(set, "model-x", []string{"good.json"}, []string{"bad.json"})); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, file, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if file.Model != "model-x" || file.Generated == "" {
		t.Errorf("metadata not preserved: %+v", file)
	}
	want, got := set.All(), loaded.All()
	if len(want) != len(got) {
		t.Fatalf("expected %d directions, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i].ID != got[i].ID || want[i].Label != got[i].Label || want[i].Polarity != got[i].Polarity {
			t.Errorf("direction %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if got[1].Weight == nil || *got[1].Weight != w {
		t.Errorf("weight not preserved: %v", got[1].Weight)
	}
}

func TestLoadLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	content := `{"generated":"2025-01-01","features":[
		{"uuid":"a","label":"Helpful","type":"good","index_in_sae":12},
		{"id":"b","label":"Flattering","type":"BAD"}]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	set, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(set.Good) != 1 || len(set.Bad) != 1 || set.Bad[0].ID != "b" {
		t.Errorf("unexpected set %+v", set)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty features", `{"features":[]}`},
		{"missing polarity", `{"features":[{"uuid":"a","label":"x"}]}`},
		{"missing label", `{"features":[{"uuid":"a","polarity":"bad"}]}`},
		{"duplicate id", `{"features":[{"uuid":"a","label":"x","polarity":"bad"},{"uuid":"a","label":"y","polarity":"good"}]}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "v.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, _, err := Load(path)
			if !errors.Is(err, ErrVectorResolution) {
				t.Errorf("expected ErrVectorResolution, got %v", err)
			}
		})
	}

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrVectorResolution) {
		t.Errorf("missing file: expected ErrVectorResolution, got %v", err)
	}
}

func TestResolvePriority(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir

	vecPath := filepath.Join(dir, "custom.json")
	fileSet, _ := NewSet([]Direction{{ID: "from-file", Label: "File", Polarity: Bad}}, SourceFile, "")
	if err := Save(vecPath, NewFile(fileSet, cfg.Model, nil, nil)); err != nil {
		t.Fatal(err)
	}

	cfg.DirectVectors = &config.DirectVectors{Bad: []config.VectorSpec{{UUID: "0123456789abcdef"}}}
	cfg.VectorSource = vecPath
	cfg.GoodExamplesPath = config.StringOrList{filepath.Join(dir, "good.json")}
	cfg.BadExamplesPath = config.StringOrList{filepath.Join(dir, "bad.json")}

	set, err := Resolve(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if set.Source != SourceDirect {
		t.Errorf("expected direct_vectors to win, got %s", set.Source)
	}
	if set.Bad[0].Label != "Bad feature 01234567" {
		t.Errorf("expected default label, got %q", set.Bad[0].Label)
	}

	cfg.DirectVectors = nil
	set, err = Resolve(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if set.Source != SourceFile || set.Bad[0].ID != "from-file" {
		t.Errorf("expected _vector_source next, got %s %+v", set.Source, set.Bad)
	}
}

func TestResolveNoSource(t *testing.T) {
	_, err := Resolve(context.Background(), config.Default(), nil)
	if !errors.Is(err, config.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

type keywordExtractor struct {
	calls atomic.Int32
}

// Extract reports "praise" on texts mentioning "great" and "detail" on texts
// mentioning "because"; "length" fires everywhere.
func (k *keywordExtractor) Extract(ctx context.Context, text string, ids []string) ([]features.Activation, error) {
	k.calls.Add(1)
	acts := []features.Activation{{ID: "length", Label: "Length", Value: 0.5}}
	if strings.Contains(text, "great") {
		acts = append(acts, features.Activation{ID: "praise", Label: "Praise", Value: 0.8})
	}
	if strings.Contains(text, "because") {
		acts = append(acts, features.Activation{ID: "detail", Label: "Explanation", Value: 0.6})
	}
	return acts, nil
}

func TestResolveGeneratesAndCaches(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "helpful.json")
	bad := filepath.Join(dir, "sycophantic.json")
	_ = os.WriteFile(good, []byte(`[
		[{"role":"assistant","content":"It fails because the index is off by one."}],
		[{"role":"assistant","content":"Use a map here because lookups are constant time."}]]`), 0600)
	_ = os.WriteFile(bad, []byte(`[
		[{"role":"assistant","content":"What a great question, you are so smart!"}],
		[{"role":"assistant","content":"Great idea, what a great plan!"}],
		[{"role":"assistant","content":"This extra example gets balanced away, great."}]]`), 0600)

	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.GoodExamplesPath = config.StringOrList{good}
	cfg.BadExamplesPath = config.StringOrList{bad}

	ex := &keywordExtractor{}
	set, err := Resolve(context.Background(), cfg, ex)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ex.calls.Load() != 4 {
		t.Errorf("expected balanced extraction of 4 texts, got %d", ex.calls.Load())
	}
	if len(set.Good) != 1 || set.Good[0].ID != "detail" {
		t.Errorf("expected detail as the only good direction, got %+v", set.Good)
	}
	if len(set.Bad) != 1 || set.Bad[0].ID != "praise" {
		t.Errorf("expected praise as the only bad direction, got %+v", set.Bad)
	}
	if _, err := os.Stat(cfg.DerivedVectorPath()); err != nil {
		t.Fatalf("expected derived file written: %v", err)
	}

	again, err := Resolve(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if again.Source != SourceExamples || again.Len() != 2 {
		t.Errorf("expected cached example directions, got %s with %d", again.Source, again.Len())
	}
	if ex.calls.Load() != 4 {
		t.Errorf("cached resolve must not extract again")
	}
}

func TestContrastTopK(t *testing.T) {
	good := [][]features.Activation{{{ID: "g1", Value: 0.9}, {ID: "g2", Value: 0.5}, {ID: "g3", Value: 0.1}}}
	bad := [][]features.Activation{{{ID: "b1", Value: 0.7}}}

	dirs := Contrast(good, bad, 2)
	var ids []string
	for _, d := range dirs {
		ids = append(ids, d.ID+":"+string(d.Polarity))
	}
	want := "g1:good,g2:good,b1:bad"
	if strings.Join(ids, ",") != want {
		t.Errorf("expected %s, got %s", want, strings.Join(ids, ","))
	}
	if *dirs[2].Weight != -0.7 {
		t.Errorf("expected signed weight -0.7, got %v", *dirs[2].Weight)
	}
}
