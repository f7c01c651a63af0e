package matching

import (
	"context"
	"errors"
	"strings"

	"github.com/aacamara/capmatch/core"
)

// matchSignal is one matcher's opinion about a query. A nil capability
// with confidence 0 means "no opinion".
type matchSignal struct {
	capability *core.Capability
	confidence float64
}

// keywordScorer and patternScorer let the engine swap matchers in tests.
type keywordScorer interface {
	Match(ctx context.Context, tokens []string) matchSignal
}

type patternScorer interface {
	Match(ctx context.Context, query string) matchSignal
}

// KeywordMatcher scores capabilities by lexical overlap between query
// tokens and each capability's keyword set. It prefers the store's ranked
// keyword search when available and degrades to a client-side intersection
// scan otherwise. It never returns an error: a broken store means
// "no opinion", not a failed match.
type KeywordMatcher struct {
	store  core.CapabilityStore
	logger core.Logger
}

// NewKeywordMatcher creates a keyword matcher over the given store.
func NewKeywordMatcher(store core.CapabilityStore, logger core.Logger) *KeywordMatcher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &KeywordMatcher{store: store, logger: logger}
}

// SetLogger sets the logger for the keyword matcher.
func (m *KeywordMatcher) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	m.logger = logger
}

// Match returns the single highest-scoring capability for the tokens.
func (m *KeywordMatcher) Match(ctx context.Context, tokens []string) matchSignal {
	if len(tokens) == 0 {
		return matchSignal{}
	}

	capabilities, err := m.store.ListEnabledCapabilities(ctx)
	if err != nil {
		m.logger.Warn("Keyword matching degraded to no opinion", map[string]interface{}{
			"operation":         "keyword_match",
			"store_unavailable": core.IsUnavailable(err),
			"error":             err.Error(),
		})
		return matchSignal{}
	}
	if len(capabilities) == 0 {
		return matchSignal{}
	}

	byID := make(map[string]*core.Capability, len(capabilities))
	for _, c := range capabilities {
		byID[c.ID] = c
	}

	// Ranked store-side search first. Hits for capabilities missing from
	// the enabled list are dropped, which keeps disabled capabilities out
	// even when the index is stale.
	hits, err := m.store.KeywordSearch(ctx, tokens)
	if err != nil && !errors.Is(err, core.ErrKeywordSearchUnsupported) {
		m.logger.Warn("Store keyword search failed, falling back to scan", map[string]interface{}{
			"operation":   "keyword_search",
			"error":       err.Error(),
			"token_count": len(tokens),
		})
	}
	for _, hit := range hits {
		if capability, ok := byID[hit.CapabilityID]; ok && hit.Score > 0 {
			return matchSignal{
				capability: capability,
				confidence: keywordConfidence(hit.Score, len(tokens)),
			}
		}
	}

	// Client-side intersection scan.
	var best *core.Capability
	bestScore := 0
	for _, capability := range capabilities {
		score := overlapScore(tokens, capability.Keywords)
		if score > bestScore {
			best = capability
			bestScore = score
		}
	}
	if best == nil {
		return matchSignal{}
	}

	m.logger.Debug("Keyword match selected", map[string]interface{}{
		"operation":     "keyword_match",
		"capability_id": best.ID,
		"overlap":       bestScore,
		"token_count":   len(tokens),
	})

	return matchSignal{
		capability: best,
		confidence: keywordConfidence(float64(bestScore), len(tokens)),
	}
}

// keywordConfidence normalizes a raw overlap score by query length so
// short queries don't trivially max out, adds the floor so any nonzero hit
// counts, and caps the result below a perfect pattern match.
func keywordConfidence(score float64, tokenCount int) float64 {
	denom := float64(tokenCount)
	if denom < 2 {
		denom = 2
	}
	confidence := score/denom + KeywordConfidenceFloor
	if confidence > KeywordConfidenceCap {
		confidence = KeywordConfidenceCap
	}
	return confidence
}

// overlapScore counts case-insensitive set intersection between tokens and
// keywords. Tokens arrive already lowercased.
func overlapScore(tokens []string, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	keywordSet := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		keywordSet[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	seen := make(map[string]struct{}, len(tokens))
	score := 0
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := keywordSet[t]; ok {
			score++
		}
	}
	return score
}
