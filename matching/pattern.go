package matching

import (
	"context"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aacamara/capmatch/core"
)

// placeholderSpan matches a {placeholder} segment after the template has
// been through regexp.QuoteMeta, i.e. with its braces already escaped.
var placeholderSpan = regexp.MustCompile(`\\\{[^{}]*\\\}`)

// CompilePattern compiles a trigger-pattern template into a
// case-insensitive regular expression. Literal segments match literally;
// each {placeholder} span matches any text.
//
// The two passes must run in this order: escaping first, wildcard
// substitution second, so the inserted ".*" is not itself escaped. A
// template like "Generate Q3 (QBR)?" therefore matches the literal string,
// with its parentheses and question mark intact.
func CompilePattern(template string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(template)
	pattern := placeholderSpan.ReplaceAllString(quoted, ".*")
	return regexp.Compile("(?i)" + pattern)
}

// PatternMatcher scores capabilities by testing the raw query against each
// enabled capability's trigger-pattern templates. It is more expensive
// than keyword matching (it scans every pattern of every capability), so
// the engine only invokes it when the keyword signal is weak.
type PatternMatcher struct {
	store  core.CapabilityStore
	logger core.Logger

	// compiled caches template -> regex across calls. Catalogs are small
	// and stable, so almost every call after the first is cache-served.
	compiled *lru.Cache[string, *regexp.Regexp]
}

// NewPatternMatcher creates a pattern matcher over the given store.
func NewPatternMatcher(store core.CapabilityStore, logger core.Logger) *PatternMatcher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	cache, _ := lru.New[string, *regexp.Regexp](patternCacheSize)
	return &PatternMatcher{store: store, logger: logger, compiled: cache}
}

// SetLogger sets the logger for the pattern matcher.
func (m *PatternMatcher) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	m.logger = logger
}

// Match tests the raw (case-insensitively handled) query against every
// enabled capability's trigger patterns and keeps the first best hit.
// Iteration order follows the store's deterministic capability order, so
// ties keep the first capability found. Malformed templates are skipped,
// never fatal.
func (m *PatternMatcher) Match(ctx context.Context, query string) matchSignal {
	capabilities, err := m.store.ListEnabledCapabilities(ctx)
	if err != nil {
		m.logger.Warn("Pattern matching degraded to no opinion", map[string]interface{}{
			"operation": "pattern_match",
			"error":     err.Error(),
		})
		return matchSignal{}
	}

	var best matchSignal
	for _, capability := range capabilities {
		for _, template := range capability.TriggerPatterns {
			re, err := m.compile(template)
			if err != nil {
				m.logger.Warn("Skipping malformed trigger pattern", map[string]interface{}{
					"operation":     "pattern_compile",
					"capability_id": capability.ID,
					"template":      template,
					"error":         err.Error(),
				})
				continue
			}
			if !re.MatchString(query) {
				continue
			}
			if PatternMatchConfidence > best.confidence {
				best = matchSignal{capability: capability, confidence: PatternMatchConfidence}
				m.logger.Debug("Trigger pattern hit", map[string]interface{}{
					"operation":     "pattern_match",
					"capability_id": capability.ID,
					"template":      template,
				})
			}
			break // one hit per capability is enough
		}
	}
	return best
}

func (m *PatternMatcher) compile(template string) (*regexp.Regexp, error) {
	if re, ok := m.compiled.Get(template); ok {
		return re, nil
	}
	re, err := CompilePattern(template)
	if err != nil {
		return nil, err
	}
	m.compiled.Add(template, re)
	return re, nil
}
