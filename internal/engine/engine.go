// Package engine wires configuration, direction resolution, feature
// extraction, scoring, the selected policy and alert decisions into the three
// operations the CLI exposes: analyze, generate-vectors and train.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gzhole/claudewatch/internal/alert"
	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/features"
	"github.com/gzhole/claudewatch/internal/judge"
	"github.com/gzhole/claudewatch/internal/metrics"
	"github.com/gzhole/claudewatch/internal/notify"
	"github.com/gzhole/claudewatch/internal/sanitize"
	"github.com/gzhole/claudewatch/internal/scoring"
	"github.com/gzhole/claudewatch/internal/strategy"
)

// Options override collaborators normally built from configuration.
type Options struct {
	Extractor features.Extractor
	Judge     judge.Provider
	Notifiers []notify.Notifier
}

// Engine holds everything resolved once per configuration load.
type Engine struct {
	cfg        *config.WatchConfig
	extractor  features.Extractor
	directions *direction.Set
	policy     strategy.Policy
	decider    *alert.Decider
	notifiers  []notify.Notifier

	cacheOnce sync.Once
	cache     *features.Cache
	cached    *features.CachedExtractor
	cacheErr  error
}

// Outcome is the result of analyzing one sample.
type Outcome struct {
	Text   string
	Result *strategy.Result
	Event  *alert.Event
	Scores scoring.Result
}

// Open validates cfg and builds an engine that can generate vectors and
// train but not yet analyze.
func Open(cfg *config.WatchConfig, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, notifiers: opts.Notifiers}
	var ex features.Extractor = features.NewClient(cfg)
	if opts.Extractor != nil {
		ex = opts.Extractor
	}
	e.extractor = &timedExtractor{next: ex}
	return e, nil
}

// New opens an engine and prepares the configured strategy. Directions are
// resolved only for strategies that score features; the logistic model is
// loaded only for logistic_regression.
func New(ctx context.Context, cfg *config.WatchConfig, opts Options) (*Engine, error) {
	e, err := Open(cfg, opts)
	if err != nil {
		return nil, err
	}

	decider, err := alert.NewDecider(cfg)
	if err != nil {
		return nil, err
	}
	e.decider = decider

	deps := strategy.Deps{Judge: opts.Judge}
	if cfg.Strategy.UsesFeatures() {
		set, err := direction.Resolve(ctx, cfg, lazyExtractor{e})
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "directions resolved", "source", set.Source, "good", len(set.Good), "bad", len(set.Bad))
		e.directions = set
		deps.Directions = set
	}
	if cfg.Strategy == config.StrategyLogistic {
		model, err := classifier.Load(cfg.ClassifierPath())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", strategy.ErrClassification, err)
		}
		deps.Model = model
	}
	if cfg.Strategy == config.StrategyClaudePrompt && deps.Judge == nil {
		p, err := judge.NewCommandProvider(cfg.JudgeCommand)
		if err != nil {
			return nil, fmt.Errorf("%w: judge_command: %v", config.ErrConfig, err)
		}
		deps.Judge = p
	}

	policy, err := strategy.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	e.policy = policy
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.WatchConfig { return e.cfg }

// Directions returns the resolved set, or nil for strategies that do not
// score features.
func (e *Engine) Directions() *direction.Set { return e.directions }

// Analyze classifies text and decides whether to alert. Nothing is persisted.
func (e *Engine) Analyze(ctx context.Context, text string) (*Outcome, error) {
	if e.policy == nil {
		return nil, fmt.Errorf("%w: engine opened without a strategy", strategy.ErrClassification)
	}
	cleaned := sanitize.Text(text)
	if !cleaned.Clean() {
		slog.Debug("removed invisible characters", "removed", cleaned.Summary())
	}
	text = cleaned.Text
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", strategy.ErrClassification)
	}

	in := strategy.Input{Text: text}
	if e.directions != nil {
		acts, err := e.extractor.Extract(ctx, text, e.directions.IDs())
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("extraction").Inc()
			return nil, err
		}
		in.Activations = features.ToMap(acts)
		in.Scores = scoring.Score(e.directions, in.Activations, e.cfg.FeatureThreshold)
	}

	res, err := e.policy.Classify(ctx, in)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("classification").Inc()
		return nil, err
	}
	ev, err := e.decider.Decide(res)
	if err != nil {
		return nil, err
	}
	metrics.ObserveAnalysis(string(res.Strategy), string(res.Verdict), ev.Fired, ev.Severity)

	return &Outcome{Text: text, Result: res, Event: ev, Scores: in.Scores}, nil
}

// Notify delivers an outcome to the configured sinks. Non-alert outcomes are
// only delivered when notify_on_good is set. Failures are returned joined but
// never change the outcome.
func (e *Engine) Notify(ctx context.Context, o *Outcome) error {
	if !o.Event.Fired && !e.cfg.NotifyOnGood {
		return nil
	}
	err := notify.Dispatch(ctx, e.notifiers, notify.Notification{
		Message:  o.Event.Message,
		Severity: o.Event.Severity,
		Fired:    o.Event.Fired,
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("notification").Inc()
	}
	return err
}

// Close releases the activation cache if it was opened and flushes metrics
// when a textfile is configured.
func (e *Engine) Close() error {
	var errs []error
	if e.cached != nil {
		metrics.ObserveCache(e.cached.Stats())
	}
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	errs = append(errs, metrics.WriteTextfile(e.cfg.MetricsTextfile))
	return errors.Join(errs...)
}

// cachedExtractor opens the activation cache on first use. Only bulk
// extraction for generation and training goes through it.
func (e *Engine) cachedExtractor() (features.Extractor, error) {
	e.cacheOnce.Do(func() {
		cache, err := features.OpenCache(e.cfg.CachePath())
		if err != nil {
			e.cacheErr = err
			return
		}
		e.cache = cache
		e.cached = &features.CachedExtractor{Next: e.extractor, Cache: cache, Model: e.cfg.Model}
	})
	if e.cacheErr != nil {
		return nil, e.cacheErr
	}
	return e.cached, nil
}

// lazyExtractor defers opening the cache until direction generation actually
// needs to extract. A cache that cannot be opened falls back to the plain
// extractor.
type lazyExtractor struct{ e *Engine }

func (l lazyExtractor) Extract(ctx context.Context, text string, ids []string) ([]features.Activation, error) {
	ex, err := l.e.cachedExtractor()
	if err != nil {
		slog.WarnContext(ctx, "activation cache unavailable", "path", l.e.cfg.CachePath(), "error", err)
		ex = l.e.extractor
	}
	return ex.Extract(ctx, text, ids)
}

type timedExtractor struct{ next features.Extractor }

func (t *timedExtractor) Extract(ctx context.Context, text string, ids []string) ([]features.Activation, error) {
	start := time.Now()
	acts, err := t.next.Extract(ctx, text, ids)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	return acts, err
}
