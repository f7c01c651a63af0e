package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aacamara/capmatch/core"
)

func TestKeywordConfidence(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		tokenCount int
		want       float64
	}{
		{"one of four tokens", 1, 4, 0.55},
		{"two of four tokens", 2, 4, 0.8},
		{"single-token query uses floor of two", 1, 1, 0.8},
		{"full overlap is capped", 4, 4, 0.95},
		{"large score is capped", 10, 3, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, keywordConfidence(tt.score, tt.tokenCount), 1e-9)
		})
	}
}

func TestOverlapScore(t *testing.T) {
	assert.Equal(t, 2, overlapScore([]string{"qbr", "acme", "deck"}, []string{"QBR", "deck", "slides"}))
	assert.Equal(t, 0, overlapScore([]string{"qbr"}, nil))
	// Duplicate tokens count once.
	assert.Equal(t, 1, overlapScore([]string{"qbr", "qbr"}, []string{"qbr"}))
}

func TestKeywordMatcher(t *testing.T) {
	qbr := enabledCapability("qbr_deck", []string{"qbr", "quarterly", "review"}, nil)
	churn := enabledCapability("churn_analysis", []string{"churn", "risk"}, nil)

	t.Run("empty tokens has no opinion", func(t *testing.T) {
		m := NewKeywordMatcher(&stubStore{capabilities: []*core.Capability{qbr}}, nil)
		sig := m.Match(context.Background(), nil)
		assert.Nil(t, sig.capability)
	})

	t.Run("store failure degrades to no opinion", func(t *testing.T) {
		m := NewKeywordMatcher(&stubStore{listErr: errors.New("store down")}, nil)
		sig := m.Match(context.Background(), []string{"generate", "qbr"})
		assert.Nil(t, sig.capability)
		assert.Zero(t, sig.confidence)
	})

	t.Run("prefers ranked store search", func(t *testing.T) {
		store := &stubStore{
			capabilities: []*core.Capability{qbr, churn},
			hits: []core.KeywordHit{
				{CapabilityID: "churn_analysis", Score: 2},
				{CapabilityID: "qbr_deck", Score: 1},
			},
		}
		m := NewKeywordMatcher(store, nil)
		sig := m.Match(context.Background(), []string{"churn", "risk", "acme", "report"})
		require.NotNil(t, sig.capability)
		assert.Equal(t, "churn_analysis", sig.capability.ID)
		assert.InDelta(t, 0.8, sig.confidence, 1e-9) // 2/4 + 0.3
	})

	t.Run("ranked hits for disabled capabilities are dropped", func(t *testing.T) {
		store := &stubStore{
			capabilities: []*core.Capability{qbr},
			hits:         []core.KeywordHit{{CapabilityID: "retired_capability", Score: 3}},
		}
		m := NewKeywordMatcher(store, nil)
		sig := m.Match(context.Background(), []string{"generate", "qbr", "acme"})
		require.NotNil(t, sig.capability)
		// Falls through to the client-side scan.
		assert.Equal(t, "qbr_deck", sig.capability.ID)
	})

	t.Run("falls back to scan when store search unsupported", func(t *testing.T) {
		store := &stubStore{
			capabilities: []*core.Capability{qbr, churn},
			keywordErr:   core.ErrKeywordSearchUnsupported,
		}
		m := NewKeywordMatcher(store, nil)
		sig := m.Match(context.Background(), []string{"generate", "qbr", "for", "acme"})
		require.NotNil(t, sig.capability)
		assert.Equal(t, "qbr_deck", sig.capability.ID)
		assert.InDelta(t, 0.55, sig.confidence, 1e-9) // 1/4 + 0.3
	})

	t.Run("no overlap has no opinion", func(t *testing.T) {
		store := &stubStore{capabilities: []*core.Capability{qbr, churn}}
		m := NewKeywordMatcher(store, nil)
		sig := m.Match(context.Background(), []string{"order", "pizza"})
		assert.Nil(t, sig.capability)
	})
}
