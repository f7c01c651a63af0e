package matching

import (
	"context"
	"sort"

	"github.com/aacamara/capmatch/core"
)

// KnowledgeRetriever fetches a small set of knowledge snippets relevant to
// a matched capability and query. Retrieval is strictly best-effort: a
// missing or failing search backend yields an empty slice, never an error.
type KnowledgeRetriever struct {
	search    core.SemanticSearch // nil when knowledge enrichment is unconfigured
	logger    core.Logger
	limit     int
	threshold float64
}

// NewKnowledgeRetriever creates a retriever over the given search backend.
// A nil search is valid and disables enrichment.
func NewKnowledgeRetriever(search core.SemanticSearch, logger core.Logger) *KnowledgeRetriever {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &KnowledgeRetriever{
		search:    search,
		logger:    logger,
		limit:     DefaultKnowledgeResultLimit,
		threshold: DefaultKnowledgeSimilarityThreshold,
	}
}

// SetLimits overrides the result limit and similarity threshold.
func (r *KnowledgeRetriever) SetLimits(limit int, threshold float64) {
	if limit > 0 {
		r.limit = limit
	}
	if threshold > 0 {
		r.threshold = threshold
	}
}

// SetLogger sets the logger for the knowledge retriever.
func (r *KnowledgeRetriever) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	r.logger = logger
}

// Retrieve returns snippets most relevant first. The search query leads
// with the capability name to bias semantic search toward
// capability-relevant content.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string, capability *core.Capability, userID string) []core.PlaybookMatch {
	if r.search == nil || capability == nil {
		return []core.PlaybookMatch{}
	}

	composite := capability.Name + " " + query
	hits, err := r.search.Search(ctx, composite, core.SearchOptions{
		Limit:     r.limit,
		Threshold: r.threshold,
		UserID:    userID,
	})
	if err != nil {
		r.logger.Warn("Knowledge retrieval failed, continuing without snippets", map[string]interface{}{
			"operation":     "knowledge_retrieve",
			"capability_id": capability.ID,
			"error":         err.Error(),
		})
		return []core.PlaybookMatch{}
	}

	matches := make([]core.PlaybookMatch, 0, len(hits))
	for _, hit := range hits {
		category := hit.Metadata["category"]
		if category == "" {
			category = DefaultKnowledgeCategory
		}
		matches = append(matches, core.PlaybookMatch{
			ID:             hit.ID,
			Title:          hit.DocumentTitle,
			Content:        hit.Content,
			RelevanceScore: hit.Similarity,
			Category:       category,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RelevanceScore > matches[j].RelevanceScore
	})
	return matches
}
