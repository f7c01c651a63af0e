package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aacamara/capmatch/core"
)

// StaticSearch is a lexical, in-memory SemanticSearch for development and
// tests: similarity is the fraction of query tokens found in the document
// text. No embeddings, no external services.
type StaticSearch struct {
	mu        sync.RWMutex
	playbooks []Playbook
}

// NewStaticSearch creates a static search pre-loaded with documents.
func NewStaticSearch(playbooks ...Playbook) *StaticSearch {
	s := &StaticSearch{}
	s.Add(playbooks...)
	return s
}

// Add indexes additional documents. Missing IDs are assigned.
func (s *StaticSearch) Add(playbooks ...Playbook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, playbook := range playbooks {
		if playbook.ID == "" {
			playbook.ID = uuid.NewString()
		}
		s.playbooks = append(s.playbooks, playbook)
	}
}

// Search implements core.SemanticSearch.
func (s *StaticSearch) Search(ctx context.Context, query string, opts core.SearchOptions) ([]core.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []core.SearchHit
	for _, playbook := range s.playbooks {
		if opts.UserID != "" && playbook.UserID != "" && playbook.UserID != opts.UserID {
			continue
		}
		text := strings.ToLower(playbook.Title + " " + playbook.Content)
		matched := 0
		for _, token := range tokens {
			if strings.Contains(text, token) {
				matched++
			}
		}
		similarity := float64(matched) / float64(len(tokens))
		if similarity < opts.Threshold || similarity == 0 {
			continue
		}
		metadata := map[string]string{"title": playbook.Title}
		if playbook.Category != "" {
			metadata["category"] = playbook.Category
		}
		hits = append(hits, core.SearchHit{
			ID:            playbook.ID,
			DocumentTitle: playbook.Title,
			Content:       playbook.Content,
			Similarity:    similarity,
			Metadata:      metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}
