// Package matching turns free-text customer-success requests into
// structured capability matches.
//
// The engine merges two independent signal sources. Keyword matching is
// cheap and runs first; pattern matching scans every enabled capability's
// trigger templates and only runs when the keyword signal is weak. The
// winning capability is then enriched with its methodology and relevant
// knowledge snippets, both best-effort.
//
// Match never returns an error. Broken matchers, an unreachable store, and
// a failing knowledge backend all degrade to lower-confidence or emptier
// results; the caller's only failure mode is a zero-confidence result.
package matching

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aacamara/capmatch/core"
)

// Engine is the capability-matching facade. One logical request per Match
// call; no shared mutable state between calls, so a single Engine is safe
// for concurrent use.
type Engine struct {
	store       core.CapabilityStore
	keyword     keywordScorer
	pattern     patternScorer
	methodology *MethodologyResolver
	knowledge   *KnowledgeRetriever

	logger    core.Logger
	telemetry core.Telemetry

	// patternThreshold is the keyword confidence at or above which the
	// pattern matcher is skipped.
	patternThreshold float64
}

// MatchOptions carries optional per-request context.
type MatchOptions struct {
	// UserID scopes knowledge retrieval to documents visible to a user.
	UserID string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. It propagates to all sub-components.
func WithLogger(logger core.Logger) EngineOption {
	return func(e *Engine) {
		e.SetLogger(logger)
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(telemetry core.Telemetry) EngineOption {
	return func(e *Engine) {
		if telemetry != nil {
			e.telemetry = telemetry
		}
	}
}

// WithSemanticSearch enables knowledge enrichment through the given
// search backend.
func WithSemanticSearch(search core.SemanticSearch) EngineOption {
	return func(e *Engine) {
		retriever := NewKnowledgeRetriever(search, e.logger)
		retriever.SetLimits(e.knowledge.limit, e.knowledge.threshold)
		e.knowledge = retriever
	}
}

// WithPatternShortCircuitThreshold overrides the keyword confidence above
// which pattern matching is skipped. Values outside (0,1] are ignored.
func WithPatternShortCircuitThreshold(threshold float64) EngineOption {
	return func(e *Engine) {
		if threshold > 0 && threshold <= 1 {
			e.patternThreshold = threshold
		}
	}
}

// WithKnowledgeLimits overrides the knowledge result limit and similarity
// threshold.
func WithKnowledgeLimits(limit int, threshold float64) EngineOption {
	return func(e *Engine) {
		e.knowledge.SetLimits(limit, threshold)
	}
}

// NewEngine creates a matching engine over the given capability store.
func NewEngine(store core.CapabilityStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:            store,
		logger:           &core.NoOpLogger{},
		telemetry:        &core.NoOpTelemetry{},
		patternThreshold: DefaultPatternShortCircuitThreshold,
	}
	e.keyword = NewKeywordMatcher(store, e.logger)
	e.pattern = NewPatternMatcher(store, e.logger)
	e.methodology = NewMethodologyResolver(store, e.logger)
	e.knowledge = NewKnowledgeRetriever(nil, e.logger)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger sets the logger for the engine and its sub-components.
func (e *Engine) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	e.logger = logger
	if m, ok := e.keyword.(*KeywordMatcher); ok {
		m.SetLogger(logger)
	}
	if m, ok := e.pattern.(*PatternMatcher); ok {
		m.SetLogger(logger)
	}
	e.methodology.SetLogger(logger)
	e.knowledge.SetLogger(logger)
}

// Match identifies the capability a free-text query is asking for.
//
// Pipeline: normalize and tokenize; keyword match; pattern match only when
// the keyword confidence is below the short-circuit threshold; keyword
// wins ties; then methodology and knowledge resolve concurrently off the
// winning capability. A nil options pointer is valid.
func (e *Engine) Match(ctx context.Context, query string, opts *MatchOptions) *core.MatchResult {
	start := time.Now()
	ctx, span := e.telemetry.StartSpan(ctx, "capmatch.match")
	defer span.End()

	if opts == nil {
		opts = &MatchOptions{}
	}

	tokens := Tokenize(query)
	span.SetAttribute("query.token_count", len(tokens))

	keywordSignal := e.runKeyword(ctx, tokens)

	var patternSignal matchSignal
	if keywordSignal.confidence < e.patternThreshold {
		patternSignal = e.runPattern(ctx, query)
	}

	// Keyword match wins ties.
	best := keywordSignal
	if patternSignal.confidence > best.confidence {
		best = patternSignal
	}

	if best.capability == nil {
		e.logger.Debug("No capability matched", map[string]interface{}{
			"operation":   "match",
			"token_count": len(tokens),
		})
		e.recordOutcome(start, 0, false)
		return &core.MatchResult{
			Confidence:        0,
			RelevantKnowledge: []core.PlaybookMatch{},
		}
	}

	result := &core.MatchResult{
		Capability:        best.capability,
		Confidence:        best.confidence,
		RelevantKnowledge: []core.PlaybookMatch{},
	}
	span.SetAttribute("capability.id", best.capability.ID)
	span.SetAttribute("match.confidence", best.confidence)

	// Methodology and knowledge have no data dependency on each other.
	// Both are best-effort: each swallows its own failures, so one failing
	// never suppresses the other's result.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Methodology = e.methodology.Resolve(gctx, best.capability.ID)
		return nil
	})
	g.Go(func() error {
		result.RelevantKnowledge = e.knowledge.Retrieve(gctx, query, best.capability, opts.UserID)
		return nil
	})
	_ = g.Wait()

	e.logger.Info("Capability matched", map[string]interface{}{
		"operation":       "match",
		"capability_id":   best.capability.ID,
		"confidence":      best.confidence,
		"has_methodology": result.Methodology != nil,
		"knowledge_count": len(result.RelevantKnowledge),
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	e.recordOutcome(start, best.confidence, true)

	return result
}

// runKeyword invokes the keyword matcher, downgrading panics to
// "no opinion" so a broken matcher never fails the whole call.
func (e *Engine) runKeyword(ctx context.Context, tokens []string) (signal matchSignal) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Keyword matcher panicked", map[string]interface{}{
				"operation": "keyword_match",
				"panic":     r,
			})
			signal = matchSignal{}
		}
	}()
	return e.keyword.Match(ctx, tokens)
}

// runPattern invokes the pattern matcher with the same downgrade policy.
func (e *Engine) runPattern(ctx context.Context, query string) (signal matchSignal) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Pattern matcher panicked", map[string]interface{}{
				"operation": "pattern_match",
				"panic":     r,
			})
			signal = matchSignal{}
		}
	}()
	return e.pattern.Match(ctx, query)
}

func (e *Engine) recordOutcome(start time.Time, confidence float64, matched bool) {
	outcome := "matched"
	if !matched {
		outcome = "unmatched"
	}
	e.telemetry.RecordMetric("capmatch.match.duration_ms",
		float64(time.Since(start).Milliseconds()),
		map[string]string{"outcome": outcome})
	e.telemetry.RecordMetric("capmatch.match.confidence", confidence,
		map[string]string{"outcome": outcome})
}
