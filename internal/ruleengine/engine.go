package ruleengine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/indexgate/internal/cache"
	"github.com/rafaeljc/indexgate/internal/observability"
)

// DefaultCacheCapacity is the number of paths an Engine remembers decisions for.
const DefaultCacheCapacity = 1 << 20

var (
	decisionTodo          = observability.FilterDecisions.WithLabelValues(observability.ReasonTodoIndex)
	decisionFrontend      = observability.FilterDecisions.WithLabelValues(observability.ReasonFrontendIndex)
	decisionNoRule        = observability.FilterDecisions.WithLabelValues(observability.ReasonNoRule)
	decisionRuleExcluded  = observability.FilterDecisions.WithLabelValues(observability.ReasonRuleExcluded)
	decisionRuleIncluded  = observability.FilterDecisions.WithLabelValues(observability.ReasonRuleIncluded)
	decisionResolveFailed = observability.FilterDecisions.WithLabelValues(observability.ReasonFault)
)

// Engine answers "should this index skip this file?".
//
// An Engine owns exactly one RuleSet and one DecisionCache, built from an
// immutable Settings value. It is safe for concurrent use.
type Engine struct {
	id       string
	logger   *slog.Logger // Dedicated logger instance (DI)
	settings Settings
	rules    *RuleSet
	cache    *cache.DecisionCache
	enabled  bool
	version  int

	// Best-effort counters for periodic reporting.
	calls   atomic.Int64
	elapsed atomic.Int64
}

type options struct {
	logger        *slog.Logger
	cacheCapacity int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used for faults. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCacheCapacity bounds the number of cached path decisions.
func WithCacheCapacity(capacity int) Option {
	return func(o *options) { o.cacheCapacity = capacity }
}

// New builds an Engine from settings. An invalid pattern aborts construction
// with an error wrapping pattern.ErrInvalidPattern.
func New(settings Settings, opts ...Option) (*Engine, error) {
	o := options{cacheCapacity: DefaultCacheCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	rules, err := NewRuleSet(settings.Rules)
	if err != nil {
		return nil, err
	}

	decisions, err := cache.NewDecisionCache(o.cacheCapacity)
	if err != nil {
		return nil, err
	}

	// Keep a private copy: the caller's slice must not change a live engine.
	settings.Rules = make([]ExclusionRule, rules.Len())
	for i := range settings.Rules {
		settings.Rules[i], _ = rules.Rule(RuleRef(i))
	}

	id := uuid.NewString()
	return &Engine{
		id:       id,
		logger:   o.logger.With(slog.String("engine_id", id)),
		settings: settings,
		rules:    rules,
		cache:    decisions,
		enabled:  settings.FrontendIndexDisabled || settings.TodoIndexDisabled || rules.Len() > 0,
		version:  computeVersion(settings),
	}, nil
}

// IsExcluded reports whether indexing indexName for path must be skipped.
// The TODO and frontend toggles apply according to the index name.
func (e *Engine) IsExcluded(path, indexName string) bool {
	if !e.enabled {
		return false
	}
	return e.IsExcludedFor(path, indexName, IsTodoIndex(indexName), IsFrontendIndex(indexName))
}

// IsExcludedFor is IsExcluded with the index classification supplied by the
// caller. Checks run cheapest first:
//
//  1. disabled engine: not excluded, nothing counted
//  2. TODO toggle on a TODO index: excluded
//  3. frontend toggle on a frontend index: excluded
//  4. no rule matches path: not excluded
//  5. the matching rule's index-name policy decides
//
// An internal fault while resolving the rule is logged and the file is
// indexed: indexing too much beats silently dropping files.
func (e *Engine) IsExcludedFor(path, indexName string, isTodoIndex, isFrontendIndex bool) bool {
	if !e.enabled {
		return false
	}

	start := time.Now()
	excluded := e.decide(path, indexName, isTodoIndex, isFrontendIndex)
	e.calls.Add(1)
	e.elapsed.Add(int64(time.Since(start)))
	return excluded
}

func (e *Engine) decide(path, indexName string, isTodoIndex, isFrontendIndex bool) bool {
	if e.settings.TodoIndexDisabled && isTodoIndex {
		decisionTodo.Inc()
		return true
	}

	if e.settings.FrontendIndexDisabled && isFrontendIndex {
		decisionFrontend.Inc()
		return true
	}

	if e.rules.Len() == 0 {
		decisionNoRule.Inc()
		return false
	}

	ref, err := e.cache.Resolve(path, e.firstMatch)
	if err == nil && RuleRef(ref) == NoRule {
		decisionNoRule.Inc()
		return false
	}

	var excluded bool
	if err == nil {
		excluded, err = e.rules.excludes(RuleRef(ref), indexName)
	}
	if err != nil {
		e.fault(path, indexName, err)
		return false
	}

	if excluded {
		decisionRuleExcluded.Inc()
	} else {
		decisionRuleIncluded.Inc()
	}
	return excluded
}

// firstMatch is the cache Resolver backed by the rule set.
func (e *Engine) firstMatch(path string) int {
	return int(e.rules.FirstMatch(path))
}

func (e *Engine) fault(path, indexName string, err error) {
	decisionResolveFailed.Inc()
	observability.FilterFaults.Inc()
	e.logger.Error("failed to resolve index exclusion, indexing file",
		slog.String("path", path),
		slog.String("index", indexName),
		slog.Any("error", err),
	)
}

// AffectsIndex reports whether the engine can exclude anything from
// indexName, independent of any path.
func (e *Engine) AffectsIndex(indexName string) bool {
	if !e.enabled {
		return false
	}
	if e.rules.Len() > 0 {
		return true
	}
	if e.settings.TodoIndexDisabled && IsTodoIndex(indexName) {
		return true
	}
	return e.settings.FrontendIndexDisabled && IsFrontendIndex(indexName)
}

// Version changes whenever the toggles or the rule list change, and only then.
// Hosts compare it to decide whether previously built index data is stale.
func (e *Engine) Version() int { return e.version }

// ID identifies this engine instance in logs and the registry.
func (e *Engine) ID() string { return e.id }

// Enabled reports whether any toggle is on or any rule is configured.
func (e *Engine) Enabled() bool { return e.enabled }

// Settings returns a copy of the settings the engine was built from.
func (e *Engine) Settings() Settings {
	s := e.settings
	s.Rules = make([]ExclusionRule, len(e.settings.Rules))
	for i, r := range e.settings.Rules {
		r.Policy.Names = append([]string(nil), r.Policy.Names...)
		s.Rules[i] = r
	}
	return s
}

// Stats returns the counters accumulated since the last reset.
func (e *Engine) Stats() Stats {
	return Stats{
		EngineID:     e.id,
		Version:      e.version,
		Calls:        e.calls.Load(),
		ElapsedNanos: e.elapsed.Load(),
		CachedPaths:  e.cache.Size(),
	}
}

// ResetCounters zeroes the call and duration counters.
func (e *Engine) ResetCounters() {
	e.calls.Store(0)
	e.elapsed.Store(0)
}

// InvalidateCache forgets every cached decision.
func (e *Engine) InvalidateCache() {
	e.cache.InvalidateAll()
}

// LogStats writes the current counters at info level.
func (e *Engine) LogStats() {
	s := e.Stats()
	e.logger.Info("index filter stats",
		slog.Int64("calls", s.Calls),
		slog.Int64("elapsed_ns", s.ElapsedNanos),
		slog.Int("cached_paths", s.CachedPaths),
		slog.Int("version", s.Version),
	)
}

// Close releases the decision cache. The engine must not be queried afterwards.
func (e *Engine) Close() {
	e.cache.Close()
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine(%s, version=%d, rules=%d)", e.id, e.version, e.rules.Len())
}
