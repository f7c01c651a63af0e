// Package capmatch is the entry point for the capability-matching engine.
// It maps free-text customer-success requests ("generate a QBR for Acme")
// to predefined capabilities with a confidence score, and resolves the
// methodology and knowledge snippets needed to execute them.
//
// Most users should import the specific packages:
//   - github.com/aacamara/capmatch/core - contracts and domain types
//   - github.com/aacamara/capmatch/matching - the engine itself
//   - github.com/aacamara/capmatch/store - catalog backends
//   - github.com/aacamara/capmatch/knowledge - semantic search backends
//
// This package wires them together from configuration.
package capmatch

import (
	"fmt"

	"github.com/aacamara/capmatch/core"
	"github.com/aacamara/capmatch/knowledge"
	"github.com/aacamara/capmatch/matching"
	"github.com/aacamara/capmatch/store"
	"github.com/aacamara/capmatch/telemetry"
)

// Re-export the types callers touch most.
type (
	Capability    = core.Capability
	Methodology   = core.Methodology
	PlaybookMatch = core.PlaybookMatch
	MatchResult   = core.MatchResult

	Config = core.Config
	Option = core.Option

	Logger    = core.Logger
	Telemetry = core.Telemetry

	Engine       = matching.Engine
	MatchOptions = matching.MatchOptions
)

// Re-export the common constructors and options.
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	WithName                         = core.WithName
	WithNamespace                    = core.WithNamespace
	WithStoreProvider                = core.WithStoreProvider
	WithRedisURL                     = core.WithRedisURL
	WithSQLitePath                   = core.WithSQLitePath
	WithCatalogPath                  = core.WithCatalogPath
	WithKnowledge                    = core.WithKnowledge
	WithPatternShortCircuitThreshold = core.WithPatternShortCircuitThreshold
	WithKnowledgeLimits              = core.WithKnowledgeLimits
	WithTelemetry                    = core.WithTelemetry
)

// New builds a matching engine from configuration: the capability store
// backend (memory, redis, or sqlite), optional chromem-backed knowledge
// search, and optional OTel telemetry. The returned cleanup function
// releases whatever the chosen backends hold open.
func New(cfg *Config, opts ...matching.EngineOption) (*Engine, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := core.NewStructuredLogger(cfg.Name)

	capStore, closeStore, err := newStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	engineOpts := []matching.EngineOption{matching.WithLogger(logger)}

	if cfg.Knowledge.Enabled {
		search, err := knowledge.NewChromemSearch(knowledge.ChromemConfig{
			PersistPath: cfg.Knowledge.PersistPath,
			Collection:  cfg.Knowledge.Collection,
		}, nil)
		if err != nil {
			_ = closeStore()
			return nil, nil, fmt.Errorf("initializing knowledge search: %w", err)
		}
		search.SetLogger(logger)
		engineOpts = append(engineOpts, matching.WithSemanticSearch(search))
	}

	if cfg.Telemetry.Enabled {
		provider, err := telemetry.NewOTelProvider(cfg.Telemetry.ServiceName)
		if err != nil {
			logger.Warn("Telemetry initialization failed, continuing without it", map[string]interface{}{
				"operation": "telemetry_init",
				"error":     err.Error(),
			})
		} else {
			engineOpts = append(engineOpts, matching.WithTelemetry(provider))
		}
	}

	if cfg.Matching.PatternShortCircuitThreshold > 0 {
		engineOpts = append(engineOpts,
			matching.WithPatternShortCircuitThreshold(cfg.Matching.PatternShortCircuitThreshold))
	}
	if cfg.Matching.KnowledgeResultLimit > 0 || cfg.Matching.KnowledgeSimilarityThreshold > 0 {
		engineOpts = append(engineOpts,
			matching.WithKnowledgeLimits(cfg.Matching.KnowledgeResultLimit, cfg.Matching.KnowledgeSimilarityThreshold))
	}

	engineOpts = append(engineOpts, opts...)
	return matching.NewEngine(capStore, engineOpts...), closeStore, nil
}

// newStore builds the configured capability store backend.
func newStore(cfg *Config, logger Logger) (core.CapabilityStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Provider {
	case "", "memory":
		memStore := store.NewMemoryStore()
		memStore.SetLogger(logger)
		if cfg.Store.CatalogPath != "" {
			catalog, err := store.LoadCatalogFile(cfg.Store.CatalogPath)
			if err != nil {
				return nil, nil, err
			}
			memStore.LoadCatalog(catalog)
		}
		return memStore, noop, nil

	case "redis":
		redisStore, err := store.NewRedisStore(cfg.Store.RedisURL, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		redisStore.SetLogger(logger)
		return redisStore, redisStore.Close, nil

	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sqliteStore.SetLogger(logger)
		return sqliteStore, sqliteStore.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store provider %q: %w", cfg.Store.Provider, core.ErrInvalidConfiguration)
	}
}
