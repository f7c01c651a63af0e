package matching

import (
	"context"
	"sync/atomic"

	"github.com/aacamara/capmatch/core"
)

// stubStore is a scriptable CapabilityStore for matcher tests.
type stubStore struct {
	capabilities []*core.Capability
	hits         []core.KeywordHit
	methodology  *core.Methodology

	listErr        error
	keywordErr     error
	methodologyErr error
}

func (s *stubStore) ListEnabledCapabilities(ctx context.Context) ([]*core.Capability, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.capabilities, nil
}

func (s *stubStore) KeywordSearch(ctx context.Context, tokens []string) ([]core.KeywordHit, error) {
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return s.hits, nil
}

func (s *stubStore) MethodologyFor(ctx context.Context, capabilityID string) (*core.Methodology, error) {
	if s.methodologyErr != nil {
		return nil, s.methodologyErr
	}
	if s.methodology == nil {
		return nil, core.ErrMethodologyNotFound
	}
	return s.methodology, nil
}

// stubSearch is a scriptable SemanticSearch.
type stubSearch struct {
	hits []core.SearchHit
	err  error

	lastQuery string
	lastOpts  core.SearchOptions
}

func (s *stubSearch) Search(ctx context.Context, query string, opts core.SearchOptions) ([]core.SearchHit, error) {
	s.lastQuery = query
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

// fixedScorer returns a canned signal and counts invocations.
type fixedScorer struct {
	signal matchSignal
	calls  atomic.Int64
}

func (f *fixedScorer) Match(ctx context.Context, _ []string) matchSignal {
	f.calls.Add(1)
	return f.signal
}

// countingPattern is a patternScorer that counts invocations.
type countingPattern struct {
	signal matchSignal
	calls  atomic.Int64
}

func (p *countingPattern) Match(ctx context.Context, _ string) matchSignal {
	p.calls.Add(1)
	return p.signal
}

// panicScorer panics on every call, for downgrade tests.
type panicScorer struct{}

func (panicScorer) Match(ctx context.Context, _ []string) matchSignal {
	panic("matcher exploded")
}

type panicPattern struct{}

func (panicPattern) Match(ctx context.Context, _ string) matchSignal {
	panic("matcher exploded")
}

func enabledCapability(id string, keywords []string, patterns []string) *core.Capability {
	return &core.Capability{
		ID:              id,
		Name:            id,
		Keywords:        keywords,
		TriggerPatterns: patterns,
		Enabled:         true,
	}
}
