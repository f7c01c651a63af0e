// Package knowledge provides SemanticSearch implementations for playbook
// retrieval: an embedded vector store backed by chromem-go and a static
// lexical search for development and tests. The matching engine consumes
// either through core.SemanticSearch and treats every failure as
// best-effort.
package knowledge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/aacamara/capmatch/core"
)

// Playbook is a reference document (playbook, doc excerpt) to index for
// retrieval. UserID optionally scopes the document to one user.
type Playbook struct {
	ID       string
	Title    string
	Content  string
	Category string
	UserID   string
}

// ChromemConfig configures the embedded vector store.
type ChromemConfig struct {
	// PersistPath persists the index on disk; empty keeps it in memory.
	PersistPath string
	// Collection names the document collection. Defaults to "playbooks".
	Collection string
}

// ChromemSearch implements core.SemanticSearch over a chromem-go
// collection.
type ChromemSearch struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     core.Logger
}

// NewChromemSearch creates a semantic search backend. embed may be nil, in
// which case chromem-go's default embedding function is used (requires an
// OpenAI API key in the environment).
func NewChromemSearch(config ChromemConfig, embed chromem.EmbeddingFunc) (*ChromemSearch, error) {
	if config.Collection == "" {
		config.Collection = "playbooks"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistPath, "playbooks.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("creating persistent vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", config.Collection, err)
	}

	return &ChromemSearch{
		db:         db,
		collection: collection,
		logger:     &core.NoOpLogger{},
	}, nil
}

// SetLogger sets the logger for the search backend.
func (s *ChromemSearch) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s.logger = logger
}

// IndexPlaybooks adds documents to the collection. Missing IDs are
// assigned.
func (s *ChromemSearch) IndexPlaybooks(ctx context.Context, playbooks []Playbook) error {
	for _, playbook := range playbooks {
		if playbook.ID == "" {
			playbook.ID = uuid.NewString()
		}
		metadata := map[string]string{"title": playbook.Title}
		if playbook.Category != "" {
			metadata["category"] = playbook.Category
		}
		if playbook.UserID != "" {
			metadata["user_id"] = playbook.UserID
		}
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       playbook.ID,
			Content:  playbook.Content,
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("indexing playbook %s: %w", playbook.ID, err)
		}
	}
	return nil
}

// Count returns the number of indexed documents.
func (s *ChromemSearch) Count() int {
	return s.collection.Count()
}

// Search implements core.SemanticSearch. When opts.UserID is set, only
// documents carrying that user_id metadata are considered.
func (s *ChromemSearch) Search(ctx context.Context, query string, opts core.SearchOptions) ([]core.SearchHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 3
	}
	// chromem rejects nResults larger than the collection.
	if count := s.collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	var where map[string]string
	if opts.UserID != "" {
		where = map[string]string{"user_id": opts.UserID}
	}

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, core.NewEngineError("knowledge.Search", "search",
			fmt.Errorf("%w: %v", core.ErrSearchUnavailable, err))
	}

	hits := make([]core.SearchHit, 0, len(results))
	for _, result := range results {
		similarity := float64(result.Similarity)
		if similarity < opts.Threshold {
			continue
		}
		hits = append(hits, core.SearchHit{
			ID:            result.ID,
			DocumentTitle: result.Metadata["title"],
			Content:       result.Content,
			Similarity:    similarity,
			Metadata:      result.Metadata,
		})
	}
	return hits, nil
}
