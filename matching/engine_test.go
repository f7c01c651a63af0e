package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aacamara/capmatch/core"
)

func TestEngineMatchByKeyword(t *testing.T) {
	qbr := enabledCapability("qbr_deck", []string{"qbr", "quarterly", "review"}, nil)
	store := &stubStore{
		capabilities: []*core.Capability{qbr},
		methodology: &core.Methodology{
			ID:    "qbr_prep",
			Name:  "QBR Preparation",
			Steps: []core.MethodologyStep{{Number: 1, Title: "Pull usage data"}},
		},
	}
	engine := NewEngine(store)

	result := engine.Match(context.Background(), "generate a QBR for Acme", nil)

	require.True(t, result.Matched())
	assert.Equal(t, "qbr_deck", result.Capability.ID)
	// 4 tokens, 1 keyword overlap: 1/4 + 0.3.
	assert.InDelta(t, 0.55, result.Confidence, 1e-9)
	require.NotNil(t, result.Methodology)
	assert.Equal(t, "qbr_prep", result.Methodology.ID)
	assert.NotNil(t, result.RelevantKnowledge)
}

func TestEngineMatchByTriggerPattern(t *testing.T) {
	savePlay := enabledCapability("save_play", []string{"retention"}, []string{"draft a save play for {customer}"})
	store := &stubStore{capabilities: []*core.Capability{savePlay}}
	engine := NewEngine(store)

	result := engine.Match(context.Background(), "draft a save play for Globex", nil)

	require.True(t, result.Matched())
	assert.Equal(t, "save_play", result.Capability.ID)
	assert.Equal(t, PatternMatchConfidence, result.Confidence)
}

func TestEngineNoMatch(t *testing.T) {
	store := &stubStore{
		capabilities: []*core.Capability{
			enabledCapability("qbr_deck", []string{"qbr"}, []string{"generate a qbr for {customer}"}),
		},
	}
	engine := NewEngine(store)

	result := engine.Match(context.Background(), "order a pizza", nil)

	assert.False(t, result.Matched())
	assert.Nil(t, result.Capability)
	assert.Zero(t, result.Confidence)
	assert.Nil(t, result.Methodology)
	assert.NotNil(t, result.RelevantKnowledge)
	assert.Empty(t, result.RelevantKnowledge)
}

func TestEngineEmptyQuery(t *testing.T) {
	engine := NewEngine(&stubStore{})

	for _, query := range []string{"", "   ", "a an to"} {
		result := engine.Match(context.Background(), query, nil)
		assert.False(t, result.Matched(), "query %q", query)
		assert.Zero(t, result.Confidence)
	}
}

func TestEngineShortCircuitsPatternOnStrongKeyword(t *testing.T) {
	capability := enabledCapability("qbr_deck", []string{"qbr"}, nil)

	tests := []struct {
		name              string
		keywordConfidence float64
		wantPatternCalls  int64
	}{
		{"weak keyword runs pattern", 0.55, 1},
		{"just under threshold runs pattern", 0.69, 1},
		{"exactly at threshold skips pattern", 0.7, 0},
		{"strong keyword skips pattern", 0.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&stubStore{})
			keyword := &fixedScorer{signal: matchSignal{capability: capability, confidence: tt.keywordConfidence}}
			pattern := &countingPattern{}
			engine.keyword = keyword
			engine.pattern = pattern

			result := engine.Match(context.Background(), "generate a qbr", nil)

			require.True(t, result.Matched())
			assert.Equal(t, tt.keywordConfidence, result.Confidence)
			assert.Equal(t, tt.wantPatternCalls, pattern.calls.Load())
			assert.Equal(t, int64(1), keyword.calls.Load())
		})
	}
}

func TestEngineKeywordWinsTies(t *testing.T) {
	keywordCap := enabledCapability("keyword_cap", nil, nil)
	patternCap := enabledCapability("pattern_cap", nil, nil)

	engine := NewEngine(&stubStore{})
	engine.keyword = &fixedScorer{signal: matchSignal{capability: keywordCap, confidence: 0.5}}
	engine.pattern = &countingPattern{signal: matchSignal{capability: patternCap, confidence: 0.5}}

	result := engine.Match(context.Background(), "some query", nil)

	require.True(t, result.Matched())
	assert.Equal(t, "keyword_cap", result.Capability.ID)
}

func TestEnginePatternBeatsWeakKeyword(t *testing.T) {
	keywordCap := enabledCapability("keyword_cap", nil, nil)
	patternCap := enabledCapability("pattern_cap", nil, nil)

	engine := NewEngine(&stubStore{})
	engine.keyword = &fixedScorer{signal: matchSignal{capability: keywordCap, confidence: 0.55}}
	engine.pattern = &countingPattern{signal: matchSignal{capability: patternCap, confidence: PatternMatchConfidence}}

	result := engine.Match(context.Background(), "some query", nil)

	require.True(t, result.Matched())
	assert.Equal(t, "pattern_cap", result.Capability.ID)
	assert.Equal(t, PatternMatchConfidence, result.Confidence)
}

func TestEngineRecoversFromMatcherPanics(t *testing.T) {
	engine := NewEngine(&stubStore{})
	engine.keyword = panicScorer{}
	engine.pattern = panicPattern{}

	var result *core.MatchResult
	assert.NotPanics(t, func() {
		result = engine.Match(context.Background(), "generate a qbr", nil)
	})
	assert.False(t, result.Matched())
	assert.Zero(t, result.Confidence)
}

func TestEngineNeverFailsOnBrokenDependencies(t *testing.T) {
	store := &stubStore{
		capabilities:   []*core.Capability{enabledCapability("qbr_deck", []string{"qbr"}, nil)},
		methodologyErr: errors.New("methodology table corrupted"),
	}
	search := &stubSearch{err: errors.New("vector store unreachable")}
	engine := NewEngine(store, WithSemanticSearch(search))

	result := engine.Match(context.Background(), "generate a qbr for acme", nil)

	require.True(t, result.Matched())
	assert.Nil(t, result.Methodology)
	assert.NotNil(t, result.RelevantKnowledge)
	assert.Empty(t, result.RelevantKnowledge)
}

func TestEngineKnowledgeEnrichment(t *testing.T) {
	capability := enabledCapability("save_play", nil, []string{"draft a save play for {customer}"})
	capability.Name = "Save Play Drafting"
	store := &stubStore{capabilities: []*core.Capability{capability}}

	search := &stubSearch{
		hits: []core.SearchHit{
			{ID: "p2", DocumentTitle: "Churn rescue tactics", Content: "...", Similarity: 0.61},
			{ID: "p1", DocumentTitle: "Save play checklist", Content: "...", Similarity: 0.83,
				Metadata: map[string]string{"category": "retention"}},
		},
	}
	engine := NewEngine(store, WithSemanticSearch(search), WithKnowledgeLimits(5, 0.6))

	result := engine.Match(context.Background(), "draft a save play for Acme", &MatchOptions{UserID: "user-7"})

	require.True(t, result.Matched())
	require.Len(t, result.RelevantKnowledge, 2)
	// Most relevant first.
	assert.Equal(t, "p1", result.RelevantKnowledge[0].ID)
	assert.Equal(t, "retention", result.RelevantKnowledge[0].Category)
	assert.Equal(t, DefaultKnowledgeCategory, result.RelevantKnowledge[1].Category)

	// The search query leads with the capability name, and per-request
	// options flow through.
	assert.Equal(t, "Save Play Drafting draft a save play for Acme", search.lastQuery)
	assert.Equal(t, "user-7", search.lastOpts.UserID)
	assert.Equal(t, 5, search.lastOpts.Limit)
	assert.InDelta(t, 0.6, search.lastOpts.Threshold, 1e-9)
}

func TestEngineOptionOrderIndependence(t *testing.T) {
	search := &stubSearch{}
	store := &stubStore{capabilities: []*core.Capability{enabledCapability("qbr_deck", []string{"qbr"}, nil)}}

	// Limits applied before the search backend must survive.
	engine := NewEngine(store, WithKnowledgeLimits(7, 0.42), WithSemanticSearch(search))
	_ = engine.Match(context.Background(), "generate a qbr now", nil)

	assert.Equal(t, 7, search.lastOpts.Limit)
	assert.InDelta(t, 0.42, search.lastOpts.Threshold, 1e-9)
}
