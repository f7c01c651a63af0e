package core

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Config holds all configuration options for the capability matching engine.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithStoreProvider("redis"),
//	    core.WithRedisURL("redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Name identifies this engine instance in logs and telemetry.
	Name string `json:"name" env:"CAPMATCH_NAME"`

	// Namespace prefixes all store keys so multiple deployments can share
	// a backend.
	Namespace string `json:"namespace" env:"CAPMATCH_NAMESPACE"`

	// Store configuration
	Store StoreConfig `json:"store"`

	// Knowledge search configuration
	Knowledge KnowledgeConfig `json:"knowledge"`

	// Matching policy knobs
	Matching MatchingConfig `json:"matching"`

	// Telemetry configuration
	Telemetry TelemetryConfig `json:"telemetry"`
}

// StoreConfig selects and configures the capability store backend.
// Provider is one of "memory", "redis", "sqlite". The memory provider needs
// no further configuration and is the default, so the engine is usable
// without any external services.
type StoreConfig struct {
	Provider    string `json:"provider" env:"CAPMATCH_STORE_PROVIDER"`
	RedisURL    string `json:"redis_url" env:"CAPMATCH_REDIS_URL,REDIS_URL"`
	SQLitePath  string `json:"sqlite_path" env:"CAPMATCH_SQLITE_PATH"`
	CatalogPath string `json:"catalog_path" env:"CAPMATCH_CATALOG_PATH"`
}

// KnowledgeConfig configures the semantic-search collaborator. When
// Enabled is false the engine skips knowledge enrichment entirely; matches
// still succeed with empty RelevantKnowledge.
type KnowledgeConfig struct {
	Enabled     bool   `json:"enabled" env:"CAPMATCH_KNOWLEDGE_ENABLED"`
	PersistPath string `json:"persist_path" env:"CAPMATCH_KNOWLEDGE_PATH"`
	Collection  string `json:"collection" env:"CAPMATCH_KNOWLEDGE_COLLECTION"`
}

// MatchingConfig exposes the tunable matching policy values. Zero values
// mean "use the package defaults" from the matching package.
type MatchingConfig struct {
	// PatternShortCircuitThreshold is the keyword confidence above which
	// the pattern matcher is skipped.
	PatternShortCircuitThreshold float64 `json:"pattern_short_circuit_threshold" env:"CAPMATCH_PATTERN_THRESHOLD"`

	// KnowledgeResultLimit caps knowledge snippets per match.
	KnowledgeResultLimit int `json:"knowledge_result_limit" env:"CAPMATCH_KNOWLEDGE_LIMIT"`

	// KnowledgeSimilarityThreshold drops low-similarity snippets.
	KnowledgeSimilarityThreshold float64 `json:"knowledge_similarity_threshold" env:"CAPMATCH_KNOWLEDGE_SIMILARITY"`
}

// TelemetryConfig configures tracing and metrics emission.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" env:"CAPMATCH_TELEMETRY_ENABLED"`
	ServiceName string `json:"service_name" env:"CAPMATCH_TELEMETRY_SERVICE"`
}

// Option is a functional option for configuring the engine
type Option func(*Config) error

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:      "capmatch",
		Namespace: "capmatch",
		Store: StoreConfig{
			Provider: "memory",
		},
		Knowledge: KnowledgeConfig{
			Collection: "playbooks",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "capmatch",
		},
	}
}

// NewConfig creates a configuration with the standard priority layering:
// defaults, then environment variables, then functional options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	cfg.LoadFromEnv()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables onto the configuration. Each
// field's `env` tag names the variables that feed it; a comma-separated tag
// lists alternatives, first set wins. Unset variables leave the current
// value untouched, and unparseable values are ignored.
func (c *Config) LoadFromEnv() {
	overlayEnv(reflect.ValueOf(c).Elem())
}

func overlayEnv(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			if field.Kind() == reflect.Struct {
				overlayEnv(field)
			}
			continue
		}
		raw, ok := firstEnv(strings.Split(tag, ","))
		if !ok {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Bool:
			if parsed, err := strconv.ParseBool(raw); err == nil {
				field.SetBool(parsed)
			}
		case reflect.Int:
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
				field.SetInt(parsed)
			}
		case reflect.Float64:
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				field.SetFloat(parsed)
			}
		}
	}
}

func firstEnv(keys []string) (string, bool) {
	for _, key := range keys {
		if v := os.Getenv(strings.TrimSpace(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return &EngineError{Op: "config.Validate", Kind: "config", Err: err}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Provider {
	case "memory", "":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store provider %q requires a Redis URL: %w", c.Store.Provider, ErrMissingConfiguration)
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store provider %q requires a database path: %w", c.Store.Provider, ErrMissingConfiguration)
		}
	default:
		return fmt.Errorf("unknown store provider %q: %w", c.Store.Provider, ErrInvalidConfiguration)
	}

	if t := c.Matching.PatternShortCircuitThreshold; t < 0 || t > 1 {
		return fmt.Errorf("pattern short-circuit threshold %v out of range [0,1]: %w", t, ErrInvalidConfiguration)
	}
	if t := c.Matching.KnowledgeSimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("knowledge similarity threshold %v out of range [0,1]: %w", t, ErrInvalidConfiguration)
	}
	if c.Matching.KnowledgeResultLimit < 0 {
		return fmt.Errorf("knowledge result limit must be >= 0: %w", ErrInvalidConfiguration)
	}

	return nil
}

// WithName sets the engine instance name.
func WithName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("name cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.Name = name
		return nil
	}
}

// WithNamespace sets the store key namespace.
func WithNamespace(ns string) Option {
	return func(c *Config) error {
		if ns == "" {
			return fmt.Errorf("namespace cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.Namespace = ns
		return nil
	}
}

// WithStoreProvider selects the capability store backend.
func WithStoreProvider(provider string) Option {
	return func(c *Config) error {
		c.Store.Provider = provider
		return nil
	}
}

// WithRedisURL sets the Redis connection URL for the redis store provider.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Store.RedisURL = url
		return nil
	}
}

// WithSQLitePath sets the database file for the sqlite store provider.
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Store.SQLitePath = path
		return nil
	}
}

// WithCatalogPath points the memory store at a YAML capability catalog.
func WithCatalogPath(path string) Option {
	return func(c *Config) error {
		c.Store.CatalogPath = path
		return nil
	}
}

// WithKnowledge enables semantic knowledge retrieval.
func WithKnowledge(enabled bool, persistPath string) Option {
	return func(c *Config) error {
		c.Knowledge.Enabled = enabled
		c.Knowledge.PersistPath = persistPath
		return nil
	}
}

// WithPatternShortCircuitThreshold overrides the keyword confidence above
// which pattern matching is skipped.
func WithPatternShortCircuitThreshold(t float64) Option {
	return func(c *Config) error {
		c.Matching.PatternShortCircuitThreshold = t
		return nil
	}
}

// WithKnowledgeLimits overrides the knowledge result limit and similarity
// threshold.
func WithKnowledgeLimits(limit int, threshold float64) Option {
	return func(c *Config) error {
		c.Matching.KnowledgeResultLimit = limit
		c.Matching.KnowledgeSimilarityThreshold = threshold
		return nil
	}
}

// WithTelemetry enables telemetry with the given service name.
func WithTelemetry(enabled bool, serviceName string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		if serviceName != "" {
			c.Telemetry.ServiceName = serviceName
		}
		return nil
	}
}
