package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aacamara/capmatch/core"
)

// RedisStore is a Redis-backed capability catalog for deployments where
// several assistant instances share one catalog. Layout under a namespace:
//
//	<ns>:capability-ids          set of capability ids
//	<ns>:capabilities:<id>       capability JSON
//	<ns>:keywords:<keyword>      set of capability ids (inverted index)
//	<ns>:methodologies:<id>      methodology JSON
//	<ns>:methodology-for:<capID> primary methodology id
type RedisStore struct {
	client    *redis.Client
	namespace string
	logger    core.Logger
}

// NewRedisStore creates a Redis store client and verifies connectivity.
func NewRedisStore(redisURL, namespace string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, core.NewEngineError("store.NewRedisStore", "config",
			fmt.Errorf("%w: invalid Redis URL: %v", core.ErrInvalidConfiguration, err))
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.MinRetryBackoff = time.Millisecond * 100
	opt.MaxRetryBackoff = time.Second * 1
	opt.DialTimeout = time.Second * 5
	opt.ReadTimeout = time.Second * 5
	opt.WriteTimeout = time.Second * 5
	opt.PoolTimeout = time.Second * 10

	client := redis.NewClient(opt)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			break
		}
		if i < 2 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	if err != nil {
		return nil, core.NewEngineError("store.NewRedisStore", "store",
			fmt.Errorf("%w after retries: %v", core.ErrConnectionFailed, err))
	}

	if namespace == "" {
		namespace = "capmatch"
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		logger:    &core.NoOpLogger{},
	}, nil
}

// SetLogger sets the logger for the store.
func (s *RedisStore) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s.logger = logger
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Seed replaces the catalog content: the namespace's previous keys are
// dropped first, then capability and methodology records, the keyword
// inverted index, and the primary methodology mappings are written in one
// transactional pipeline. Capabilities absent from the new catalog stop
// being matchable, and methodology mappings are recomputed from scratch.
func (s *RedisStore) Seed(ctx context.Context, catalog *Catalog) error {
	if catalog == nil {
		return nil
	}
	if err := s.clear(ctx); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()

	for _, capability := range catalog.Capabilities {
		data, err := json.Marshal(capability)
		if err != nil {
			return fmt.Errorf("failed to marshal capability %s: %w", capability.ID, err)
		}
		pipe.Set(ctx, s.key("capabilities", capability.ID), data, 0)
		pipe.SAdd(ctx, s.key("capability-ids"), capability.ID)

		for _, keyword := range capability.Keywords {
			kw := strings.ToLower(strings.TrimSpace(keyword))
			if kw == "" {
				continue
			}
			pipe.SAdd(ctx, s.key("keywords", kw), capability.ID)
		}
	}

	for _, methodology := range catalog.Methodologies {
		data, err := json.Marshal(methodology)
		if err != nil {
			return fmt.Errorf("failed to marshal methodology %s: %w", methodology.ID, err)
		}
		pipe.Set(ctx, s.key("methodologies", methodology.ID), data, 0)
		for _, capabilityID := range methodology.ApplicableTo {
			// First mapping wins: a capability keeps its existing primary.
			pipe.SetNX(ctx, s.key("methodology-for", capabilityID), methodology.ID, 0)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to seed capability catalog", map[string]interface{}{
			"operation": "catalog_seed",
			"error":     err.Error(),
		})
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	s.logger.Info("Capability catalog seeded", map[string]interface{}{
		"operation":     "catalog_seed",
		"capabilities":  len(catalog.Capabilities),
		"methodologies": len(catalog.Methodologies),
	})
	return nil
}

// ListEnabledCapabilities implements core.CapabilityStore. Results are
// ordered by capability ID for determinism.
func (s *RedisStore) ListEnabledCapabilities(ctx context.Context) ([]*core.Capability, error) {
	ids, err := s.client.SMembers(ctx, s.key("capability-ids")).Result()
	if err != nil {
		return nil, core.NewEngineError("store.ListEnabledCapabilities", "store",
			fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("capabilities", id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, core.NewEngineError("store.ListEnabledCapabilities", "store",
			fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
	}

	capabilities := make([]*core.Capability, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // id in the set but record expired or missing
		}
		var capability core.Capability
		if err := json.Unmarshal([]byte(raw), &capability); err != nil {
			s.logger.Warn("Skipping undecodable capability record", map[string]interface{}{
				"operation":     "capability_list",
				"capability_id": ids[i],
				"error":         err.Error(),
			})
			continue
		}
		if capability.Enabled {
			capabilities = append(capabilities, &capability)
		}
	}
	return capabilities, nil
}

// KeywordSearch implements core.CapabilityStore via pipelined reads of the
// keyword index sets, ranked by overlap count.
func (s *RedisStore) KeywordSearch(ctx context.Context, tokens []string) ([]core.KeywordHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	commands := make([]*redis.StringSliceCmd, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(token)
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		commands = append(commands, pipe.SMembers(ctx, s.key("keywords", token)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, core.NewEngineError("store.KeywordSearch", "store",
			fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
	}

	counts := make(map[string]int)
	for _, cmd := range commands {
		for _, id := range cmd.Val() {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	// Drop disabled capabilities so a stale index never surfaces them.
	enabled, err := s.ListEnabledCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	enabledSet := make(map[string]struct{}, len(enabled))
	for _, capability := range enabled {
		enabledSet[capability.ID] = struct{}{}
	}

	hits := make([]core.KeywordHit, 0, len(counts))
	for id, count := range counts {
		if _, ok := enabledSet[id]; !ok {
			continue
		}
		hits = append(hits, core.KeywordHit{CapabilityID: id, Score: float64(count)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].CapabilityID < hits[j].CapabilityID
	})
	return hits, nil
}

// MethodologyFor implements core.CapabilityStore.
func (s *RedisStore) MethodologyFor(ctx context.Context, capabilityID string) (*core.Methodology, error) {
	methodologyID, err := s.client.Get(ctx, s.key("methodology-for", capabilityID)).Result()
	if err == redis.Nil {
		return nil, core.ErrMethodologyNotFound
	}
	if err != nil {
		return nil, &core.EngineError{Op: "store.MethodologyFor", Kind: "store", ID: capabilityID,
			Err: fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)}
	}

	data, err := s.client.Get(ctx, s.key("methodologies", methodologyID)).Result()
	if err == redis.Nil {
		return nil, core.ErrMethodologyNotFound
	}
	if err != nil {
		return nil, &core.EngineError{Op: "store.MethodologyFor", Kind: "store", ID: methodologyID,
			Err: fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)}
	}

	var methodology core.Methodology
	if err := json.Unmarshal([]byte(data), &methodology); err != nil {
		return nil, &core.EngineError{Op: "store.MethodologyFor", Kind: "store", ID: methodologyID,
			Err: fmt.Errorf("undecodable methodology record: %w", err)}
	}
	return &methodology, nil
}

// clear deletes every key under the store's namespace so a reseed fully
// replaces the previous catalog. Other namespaces on the same Redis stay
// untouched.
func (s *RedisStore) clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.namespace+":*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan namespace %s: %w", s.namespace, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) key(parts ...string) string {
	return s.namespace + ":" + strings.Join(parts, ":")
}
