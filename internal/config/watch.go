package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration that cannot be used as written.
var ErrConfig = errors.New("configuration error")

// Strategy selects the classification policy.
type Strategy string

const (
	StrategyAnyBadFeature Strategy = "any_bad_feature"
	StrategyRatio         Strategy = "ratio"
	StrategyLogistic      Strategy = "logistic_regression"
	StrategyClaudePrompt  Strategy = "claude_prompt"
	StrategyQuality       Strategy = "quality"
	StrategyExpression    Strategy = "expression"
)

// UsesFeatures reports whether the strategy needs resolved directions and activations.
func (s Strategy) UsesFeatures() bool {
	return s != StrategyClaudePrompt
}

const (
	DefaultModel              = "meta-llama/Llama-3.3-70B-Instruct"
	DefaultGoodLabel          = "GOOD"
	DefaultBadLabel           = "BAD"
	DefaultGoodMessage        = "Good behavior detected!"
	DefaultBadMessage         = "Bad behavior detected!"
	DefaultUnclearMessage     = "Insufficient signal to judge ({{.Label}})"
	DefaultFeatureServiceURL  = "http://127.0.0.1:8765"
	DefaultAPIKeyEnv          = "GOODFIRE_API_KEY"
	DefaultAlertRatio         = 2.0
	EnvFeatureServiceURL      = "CLAUDE_WATCH_FEATURE_URL"
	NotifyCLI                 = "cli"
	NotifyEmacs               = "emacs"
	NotifyLog                 = "log"
	defaultThreshold          = 0.1
	defaultFeatureThreshold   = 0.02
	defaultLogisticThreshold  = 0.7
	defaultClaudeThreshold    = 0.5
	defaultTopK               = 15
	defaultExplainTopK        = 3
	defaultFeatureTimeoutSecs = 30
	defaultFeatureRetries     = 3
	defaultConcurrency        = 4
	defaultJudgeTimeoutSecs   = 60
)

// StringOrList allows YAML fields to accept either a single string or a list.
// "good.json" → ["good.json"], ["a.json", "b.json"] → ["a.json", "b.json"]
type StringOrList []string

func (s *StringOrList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = []string{single}
		}
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

// VectorSpec is one directly specified direction.
type VectorSpec struct {
	UUID   string   `yaml:"uuid" validate:"required"`
	Label  string   `yaml:"label,omitempty"`
	Weight *float64 `yaml:"weight,omitempty"`
}

// DirectVectors lists directions used verbatim, bypassing any lookup.
type DirectVectors struct {
	Good []VectorSpec `yaml:"good" validate:"dive"`
	Bad  []VectorSpec `yaml:"bad" validate:"dive"`
}

// Empty reports whether no direction is listed under either polarity.
func (d *DirectVectors) Empty() bool {
	return d == nil || (len(d.Good) == 0 && len(d.Bad) == 0)
}

// WatchConfig is the decision engine's configuration, one per monitored behavior.
type WatchConfig struct {
	GoodExamplesPath StringOrList   `yaml:"good_examples_path,omitempty"`
	BadExamplesPath  StringOrList   `yaml:"bad_examples_path,omitempty"`
	DirectVectors    *DirectVectors `yaml:"direct_vectors,omitempty"`
	VectorSource     string         `yaml:"_vector_source,omitempty"`

	Strategy          Strategy `yaml:"alert_strategy" validate:"oneof=any_bad_feature ratio logistic_regression claude_prompt quality expression"`
	GoodThreshold     float64  `yaml:"good_threshold" validate:"gte=0"`
	BadThreshold      float64  `yaml:"bad_threshold" validate:"gte=0"`
	FeatureThreshold  float64  `yaml:"feature_threshold" validate:"gte=0,lte=1"`
	AlertRatio        float64  `yaml:"alert_ratio" validate:"gt=0"`
	LegacyAlertRatio  *float64 `yaml:"alert_threshold,omitempty" validate:"omitempty,gt=0"`
	LogisticThreshold float64  `yaml:"logistic_threshold" validate:"gte=0,lte=1"`
	ClaudeThreshold   float64  `yaml:"claude_threshold" validate:"gte=0,lte=1"`
	AlertExpression   string   `yaml:"alert_expression,omitempty"`

	BehaviorToDetect string `yaml:"behavior_to_detect,omitempty"`
	ClaudePrompt     string `yaml:"claude_prompt,omitempty"`

	GoodLabel      string   `yaml:"good_behavior_label" validate:"required"`
	BadLabel       string   `yaml:"bad_behavior_label" validate:"required"`
	GoodMessage    string   `yaml:"good_alert_message"`
	BadMessage     string   `yaml:"bad_alert_message"`
	UnclearMessage string   `yaml:"unclear_alert_message"`
	NotifyVia      []string `yaml:"notification_methods" validate:"dive,oneof=cli emacs log"`
	NotifyOnGood   bool     `yaml:"notify_on_good"`

	Model       string `yaml:"model" validate:"required"`
	ModelPath   string `yaml:"model_path,omitempty"`
	TopK        int    `yaml:"top_k" validate:"gte=1"`
	ExplainTopK int    `yaml:"explain_top_k" validate:"gte=1"`

	FeatureServiceURL     string `yaml:"feature_service_url" validate:"required,url"`
	APIKeyEnv             string `yaml:"api_key_env"`
	FeatureTimeoutSeconds int    `yaml:"feature_timeout_seconds" validate:"gt=0"`
	FeatureRetries        int    `yaml:"feature_retries" validate:"gte=0"`
	ExtractionConcurrency int    `yaml:"extraction_concurrency" validate:"gte=1"`

	JudgeCommand        []string `yaml:"judge_command" validate:"min=1"`
	JudgeTimeoutSeconds int      `yaml:"judge_timeout_seconds" validate:"gt=0"`

	DataDir         string `yaml:"data_dir,omitempty"`
	ActivationCache string `yaml:"activation_cache,omitempty"`
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

// Default returns a WatchConfig populated with every default value.
func Default() *WatchConfig {
	return &WatchConfig{
		Strategy:              StrategyAnyBadFeature,
		GoodThreshold:         defaultThreshold,
		BadThreshold:          defaultThreshold,
		FeatureThreshold:      defaultFeatureThreshold,
		AlertRatio:            DefaultAlertRatio,
		LogisticThreshold:     defaultLogisticThreshold,
		ClaudeThreshold:       defaultClaudeThreshold,
		GoodLabel:             DefaultGoodLabel,
		BadLabel:              DefaultBadLabel,
		GoodMessage:           DefaultGoodMessage,
		BadMessage:            DefaultBadMessage,
		UnclearMessage:        DefaultUnclearMessage,
		NotifyVia:             []string{NotifyCLI},
		Model:                 DefaultModel,
		TopK:                  defaultTopK,
		ExplainTopK:           defaultExplainTopK,
		FeatureServiceURL:     DefaultFeatureServiceURL,
		APIKeyEnv:             DefaultAPIKeyEnv,
		FeatureTimeoutSeconds: defaultFeatureTimeoutSecs,
		FeatureRetries:        defaultFeatureRetries,
		ExtractionConcurrency: defaultConcurrency,
		JudgeCommand:          []string{"claude", "-p"},
		JudgeTimeoutSeconds:   defaultJudgeTimeoutSecs,
	}
}

// Parse decodes YAML (or JSON, which YAML accepts) on top of the defaults.
// Unknown keys, including "_"-prefixed metadata, are ignored.
func Parse(data []byte) (*WatchConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills in values that depend on other fields or on the environment.
func (c *WatchConfig) applyDefaults() {
	if c.LegacyAlertRatio != nil && c.AlertRatio == DefaultAlertRatio {
		c.AlertRatio = *c.LegacyAlertRatio
	}
	if c.Strategy == "" {
		c.Strategy = StrategyAnyBadFeature
	}
	if c.GoodLabel == "" {
		c.GoodLabel = DefaultGoodLabel
	}
	if c.BadLabel == "" {
		c.BadLabel = DefaultBadLabel
	}
	if c.GoodMessage == "" {
		c.GoodMessage = DefaultGoodMessage
	}
	if c.BadMessage == "" {
		c.BadMessage = DefaultBadMessage
	}
	if c.UnclearMessage == "" {
		c.UnclearMessage = DefaultUnclearMessage
	}
	if len(c.NotifyVia) == 0 {
		c.NotifyVia = []string{NotifyCLI}
	}
	if url := os.Getenv(EnvFeatureServiceURL); url != "" {
		c.FeatureServiceURL = url
	}
}

// ResolvePaths makes relative example paths absolute against baseDir.
func (c *WatchConfig) ResolvePaths(baseDir string) {
	resolve := func(paths StringOrList) StringOrList {
		out := make(StringOrList, 0, len(paths))
		for _, p := range paths {
			p = expandHome(p)
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			out = append(out, p)
		}
		return out
	}
	c.GoodExamplesPath = resolve(c.GoodExamplesPath)
	c.BadExamplesPath = resolve(c.BadExamplesPath)
	c.DataDir = expandHome(c.DataDir)
	c.ModelPath = expandHome(c.ModelPath)
	c.ActivationCache = expandHome(c.ActivationCache)
	c.MetricsTextfile = expandHome(c.MetricsTextfile)
}

// HasExamples reports whether both example sets are configured.
func (c *WatchConfig) HasExamples() bool {
	return len(c.GoodExamplesPath) > 0 && len(c.BadExamplesPath) > 0
}

// VectorsDir is where generated direction files live.
func (c *WatchConfig) VectorsDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// ModelsDir is where trained classifier artifacts live.
func (c *WatchConfig) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// CachePath returns the activation cache database location.
func (c *WatchConfig) CachePath() string {
	if c.ActivationCache != "" {
		return c.ActivationCache
	}
	return filepath.Join(c.DataDir, "cache", "activations.db")
}

// FeatureTimeout bounds a single extraction request.
func (c *WatchConfig) FeatureTimeout() time.Duration {
	return time.Duration(c.FeatureTimeoutSeconds) * time.Second
}

// JudgeTimeout bounds a single judge invocation.
func (c *WatchConfig) JudgeTimeout() time.Duration {
	return time.Duration(c.JudgeTimeoutSeconds) * time.Second
}

// ModelSlug turns "meta-llama/Llama-3.3-70B-Instruct" into "Llama_3.3_70B_Instruct".
func (c *WatchConfig) ModelSlug() string {
	name := c.Model
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, "-", "_")
}

// ExampleStem names an example set after its sources: "sycophantic" for
// "data/sycophantic.json", "a_plus_b" when several are given.
func ExampleStem(paths []string) string {
	stems := make([]string, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(strings.TrimRight(p, "/"))
		base = strings.TrimSuffix(base, filepath.Ext(base))
		base = strings.NewReplacer("*", "", "?", "").Replace(base)
		if base == "" {
			base = filepath.Base(filepath.Dir(p))
		}
		stems = append(stems, base)
	}
	return strings.Join(stems, "_plus_")
}

// DerivedVectorPath is the cache location for directions generated from the examples.
func (c *WatchConfig) DerivedVectorPath() string {
	name := fmt.Sprintf("discriminative_%s_vs_%s_%s.json",
		ExampleStem(c.GoodExamplesPath), ExampleStem(c.BadExamplesPath), c.ModelSlug())
	return filepath.Join(c.VectorsDir(), name)
}

// ClassifierPath is where the logistic artifact is read from and trained into.
func (c *WatchConfig) ClassifierPath() string {
	if c.ModelPath != "" {
		return c.ModelPath
	}
	name := fmt.Sprintf("classifier_%s_vs_%s_%s.json",
		ExampleStem(c.GoodExamplesPath), ExampleStem(c.BadExamplesPath), c.ModelSlug())
	return filepath.Join(c.ModelsDir(), name)
}

// VectorSourcePath resolves _vector_source against the vectors directory.
func (c *WatchConfig) VectorSourcePath() string {
	if c.VectorSource == "" {
		return ""
	}
	p := expandHome(c.VectorSource)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.VectorsDir(), p)
}

// JudgePrompt is the instruction handed to the judge, ahead of the text itself.
func (c *WatchConfig) JudgePrompt() string {
	if c.ClaudePrompt != "" {
		return c.ClaudePrompt
	}
	if c.BehaviorToDetect == "" {
		return ""
	}
	return fmt.Sprintf(`Rate the following text for: %s. Output only JSON, no other text: {"score": 0.0-1.0}`, c.BehaviorToDetect)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
