package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("direct_vectors:\n  bad:\n    - uuid: abc\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Strategy != StrategyAnyBadFeature {
		t.Errorf("expected strategy %s, got %s", StrategyAnyBadFeature, cfg.Strategy)
	}
	if cfg.FeatureThreshold != 0.02 {
		t.Errorf("expected feature_threshold 0.02, got %v", cfg.FeatureThreshold)
	}
	if cfg.AlertRatio != 2.0 {
		t.Errorf("expected alert_ratio 2.0, got %v", cfg.AlertRatio)
	}
	if cfg.GoodLabel != "GOOD" || cfg.BadLabel != "BAD" {
		t.Errorf("unexpected labels %s/%s", cfg.GoodLabel, cfg.BadLabel)
	}
	if cfg.UnclearMessage != DefaultUnclearMessage {
		t.Errorf("expected default unclear message, got %q", cfg.UnclearMessage)
	}
	if len(cfg.NotifyVia) != 1 || cfg.NotifyVia[0] != NotifyCLI {
		t.Errorf("expected [cli] notifications, got %v", cfg.NotifyVia)
	}
	if cfg.TopK != 15 || cfg.ExplainTopK != 3 {
		t.Errorf("unexpected top_k/explain_top_k %d/%d", cfg.TopK, cfg.ExplainTopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	data := `{"_comment": "metadata", "alert_strategy": "ratio", "good_examples_path": "good.json",
		"bad_examples_path": ["bad1.json", "bad2.json"], "alert_threshold": 3.5}`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Strategy != StrategyRatio {
		t.Errorf("expected ratio, got %s", cfg.Strategy)
	}
	if len(cfg.GoodExamplesPath) != 1 || len(cfg.BadExamplesPath) != 2 {
		t.Errorf("StringOrList decode wrong: %v / %v", cfg.GoodExamplesPath, cfg.BadExamplesPath)
	}
	if cfg.AlertRatio != 3.5 {
		t.Errorf("legacy alert_threshold should set alert_ratio, got %v", cfg.AlertRatio)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no direction source",
			yaml:    "alert_strategy: ratio\n",
			wantErr: "needs directions",
		},
		{
			name:    "direct and vector source together",
			yaml:    "_vector_source: v.json\ndirect_vectors:\n  good:\n    - uuid: a\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "claude prompt without behavior",
			yaml:    "alert_strategy: claude_prompt\n",
			wantErr: "behavior_to_detect",
		},
		{
			name: "claude prompt with behavior needs no directions",
			yaml: "alert_strategy: claude_prompt\nbehavior_to_detect: flattery\n",
		},
		{
			name:    "unknown strategy",
			yaml:    "alert_strategy: vibes\n_vector_source: v.json\n",
			wantErr: "alert_strategy",
		},
		{
			name:    "negative threshold",
			yaml:    "bad_threshold: -1\n_vector_source: v.json\n",
			wantErr: "bad_threshold",
		},
		{
			name:    "feature threshold above one",
			yaml:    "feature_threshold: 1.5\n_vector_source: v.json\n",
			wantErr: "feature_threshold",
		},
		{
			name:    "unknown notifier",
			yaml:    "notification_methods: [cli, pager]\n_vector_source: v.json\n",
			wantErr: "notification_methods",
		},
		{
			name:    "direct vector without uuid",
			yaml:    "direct_vectors:\n  bad:\n    - label: nameless\n",
			wantErr: "uuid is required",
		},
		{
			name:    "expression without expression",
			yaml:    "alert_strategy: expression\n_vector_source: v.json\n",
			wantErr: "alert_expression",
		},
		{
			name:    "only good examples",
			yaml:    "good_examples_path: g.json\n",
			wantErr: "must be given together",
		},
		{
			name: "examples with direct vectors",
			yaml: "good_examples_path: g.json\nbad_examples_path: b.json\ndirect_vectors:\n  bad:\n    - uuid: x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg, err := Parse([]byte("bad_threshold: -1\ngood_threshold: -2\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	err = cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("expected 3 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.GoodExamplesPath = StringOrList{"/ex/helpful.json"}
	cfg.BadExamplesPath = StringOrList{"/ex/sycophantic.json", "/ex/flattery.json"}

	want := "/data/vectors/discriminative_helpful_vs_sycophantic_plus_flattery_Llama_3.3_70B_Instruct.json"
	if got := cfg.DerivedVectorPath(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got := cfg.ClassifierPath(); !strings.HasPrefix(got, "/data/models/classifier_helpful_vs_") {
		t.Errorf("unexpected classifier path %s", got)
	}

	cfg.VectorSource = "custom.json"
	if got := cfg.VectorSourcePath(); got != "/data/vectors/custom.json" {
		t.Errorf("expected relative _vector_source under vectors dir, got %s", got)
	}
	cfg.VectorSource = "/abs/v.json"
	if got := cfg.VectorSourcePath(); got != "/abs/v.json" {
		t.Errorf("expected absolute _vector_source untouched, got %s", got)
	}
}

func TestJudgePrompt(t *testing.T) {
	cfg := Default()
	cfg.BehaviorToDetect = "sycophancy"
	want := `Rate the following text for: sycophancy. Output only JSON, no other text: {"score": 0.0-1.0}`
	if got := cfg.JudgePrompt(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	cfg.ClaudePrompt = "custom"
	if got := cfg.JudgePrompt(); got != "custom" {
		t.Errorf("literal claude_prompt should win, got %q", got)
	}
}

func TestLoadWatchResolvesExamplePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watch.yaml")
	if err := os.WriteFile(path, []byte("good_examples_path: good.json\nbad_examples_path: /abs/bad.json\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWatch(path)
	if err != nil {
		t.Fatalf("LoadWatch error: %v", err)
	}
	if cfg.GoodExamplesPath[0] != filepath.Join(dir, "good.json") {
		t.Errorf("expected relative path resolved against config dir, got %s", cfg.GoodExamplesPath[0])
	}
	if cfg.BadExamplesPath[0] != "/abs/bad.json" {
		t.Errorf("expected absolute path kept, got %s", cfg.BadExamplesPath[0])
	}
}

func TestLoadWatchMissingFile(t *testing.T) {
	_, err := LoadWatch(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for missing file, got %v", err)
	}
}

func TestFeatureURLFromEnv(t *testing.T) {
	t.Setenv(EnvFeatureServiceURL, "http://example.test:9000")
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FeatureServiceURL != "http://example.test:9000" {
		t.Errorf("expected env override, got %s", cfg.FeatureServiceURL)
	}
}
