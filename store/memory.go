// Package store provides CapabilityStore implementations: an in-memory
// catalog (also the standard test double), a Redis-backed store for shared
// deployments, and a SQLite store for single-binary installs. All of them
// satisfy core.CapabilityStore and keep the same contract: reads only,
// deterministic capability order, disabled capabilities never surface.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aacamara/capmatch/core"
)

// MemoryStore is an in-memory capability catalog with a keyword inverted
// index. Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu sync.RWMutex

	// order preserves insertion order for deterministic iteration.
	order         []string
	capabilities  map[string]*core.Capability
	keywordIndex  map[string][]string // lowercased keyword -> capability ids
	methodologies map[string]*core.Methodology
	primary       map[string]string // capability id -> methodology id

	logger core.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		capabilities:  make(map[string]*core.Capability),
		keywordIndex:  make(map[string][]string),
		methodologies: make(map[string]*core.Methodology),
		primary:       make(map[string]string),
		logger:        &core.NoOpLogger{},
	}
}

// NewMemoryStoreFromCatalog creates a store pre-loaded from a catalog.
func NewMemoryStoreFromCatalog(catalog *Catalog) *MemoryStore {
	s := NewMemoryStore()
	s.LoadCatalog(catalog)
	return s
}

// SetLogger sets the logger for the store.
func (s *MemoryStore) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s.logger = logger
}

// AddCapability inserts or replaces a capability.
func (s *MemoryStore) AddCapability(capability *core.Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.capabilities[capability.ID]; !exists {
		s.order = append(s.order, capability.ID)
	} else {
		s.removeFromKeywordIndex(capability.ID)
	}
	s.capabilities[capability.ID] = capability

	for _, keyword := range capability.Keywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" {
			continue
		}
		if !containsString(s.keywordIndex[kw], capability.ID) {
			s.keywordIndex[kw] = append(s.keywordIndex[kw], capability.ID)
		}
	}
}

// AddMethodology inserts a methodology and maps it as the primary for each
// capability in ApplicableTo that has none yet. First mapping wins.
func (s *MemoryStore) AddMethodology(methodology *core.Methodology) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.methodologies[methodology.ID] = methodology
	for _, capabilityID := range methodology.ApplicableTo {
		if _, taken := s.primary[capabilityID]; !taken {
			s.primary[capabilityID] = methodology.ID
		}
	}
}

// LoadCatalog loads all capabilities and methodologies from a catalog.
func (s *MemoryStore) LoadCatalog(catalog *Catalog) {
	if catalog == nil {
		return
	}
	for _, capability := range catalog.Capabilities {
		s.AddCapability(capability)
	}
	for _, methodology := range catalog.Methodologies {
		s.AddMethodology(methodology)
	}
	s.logger.Info("Catalog loaded", map[string]interface{}{
		"operation":     "catalog_load",
		"capabilities":  len(catalog.Capabilities),
		"methodologies": len(catalog.Methodologies),
	})
}

// ListEnabledCapabilities implements core.CapabilityStore.
func (s *MemoryStore) ListEnabledCapabilities(ctx context.Context) ([]*core.Capability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	capabilities := make([]*core.Capability, 0, len(s.order))
	for _, id := range s.order {
		if capability := s.capabilities[id]; capability != nil && capability.Enabled {
			capabilities = append(capabilities, capability)
		}
	}
	return capabilities, nil
}

// KeywordSearch implements core.CapabilityStore using the inverted index.
// Results are ranked by overlap count, ties broken by insertion order.
func (s *MemoryStore) KeywordSearch(ctx context.Context, tokens []string) ([]core.KeywordHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(token)
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		for _, id := range s.keywordIndex[token] {
			if capability := s.capabilities[id]; capability != nil && capability.Enabled {
				counts[id]++
			}
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	position := make(map[string]int, len(s.order))
	for i, id := range s.order {
		position[id] = i
	}

	hits := make([]core.KeywordHit, 0, len(counts))
	for id, count := range counts {
		hits = append(hits, core.KeywordHit{CapabilityID: id, Score: float64(count)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return position[hits[i].CapabilityID] < position[hits[j].CapabilityID]
	})
	return hits, nil
}

// MethodologyFor implements core.CapabilityStore.
func (s *MemoryStore) MethodologyFor(ctx context.Context, capabilityID string) (*core.Methodology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	methodologyID, ok := s.primary[capabilityID]
	if !ok {
		return nil, core.ErrMethodologyNotFound
	}
	methodology, ok := s.methodologies[methodologyID]
	if !ok {
		return nil, core.ErrMethodologyNotFound
	}
	return methodology, nil
}

// removeFromKeywordIndex drops all index entries for a capability.
// Caller must hold the write lock.
func (s *MemoryStore) removeFromKeywordIndex(capabilityID string) {
	for kw, ids := range s.keywordIndex {
		filtered := ids[:0]
		for _, id := range ids {
			if id != capabilityID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			delete(s.keywordIndex, kw)
		} else {
			s.keywordIndex[kw] = filtered
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
