package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aacamara/capmatch/core"
)

// SQLiteStore is a file-backed capability catalog for single-binary
// deployments. Full records are stored as JSON documents; keywords get a
// relational side table so ranked keyword search stays in SQL.
type SQLiteStore struct {
	db     *sql.DB
	logger core.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS capabilities (
	id      TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 1,
	doc     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS capability_keywords (
	capability_id TEXT NOT NULL,
	keyword       TEXT NOT NULL,
	PRIMARY KEY (capability_id, keyword)
);
CREATE INDEX IF NOT EXISTS idx_capability_keywords_keyword
	ON capability_keywords (keyword);
CREATE TABLE IF NOT EXISTS methodologies (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS capability_methodologies (
	capability_id  TEXT PRIMARY KEY,
	methodology_id TEXT NOT NULL
);`

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, core.NewEngineError("store.NewSQLiteStore", "config",
			fmt.Errorf("%w: sqlite store requires a path", core.ErrMissingConfiguration))
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.NewEngineError("store.NewSQLiteStore", "store",
			fmt.Errorf("opening database: %w", err))
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: &core.NoOpLogger{}}, nil
}

// SetLogger sets the logger for the store.
func (s *SQLiteStore) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s.logger = logger
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seed replaces the catalog content in one transaction.
func (s *SQLiteStore) Seed(ctx context.Context, catalog *Catalog) error {
	if catalog == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"capabilities", "capability_keywords", "methodologies", "capability_methodologies"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, capability := range catalog.Capabilities {
		doc, err := json.Marshal(capability)
		if err != nil {
			return fmt.Errorf("marshaling capability %s: %w", capability.ID, err)
		}
		enabled := 0
		if capability.Enabled {
			enabled = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO capabilities (id, enabled, doc) VALUES (?, ?, ?)`,
			capability.ID, enabled, string(doc),
		); err != nil {
			return fmt.Errorf("inserting capability %s: %w", capability.ID, err)
		}
		for _, keyword := range capability.Keywords {
			kw := strings.ToLower(strings.TrimSpace(keyword))
			if kw == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO capability_keywords (capability_id, keyword) VALUES (?, ?)`,
				capability.ID, kw,
			); err != nil {
				return fmt.Errorf("indexing keyword %q: %w", kw, err)
			}
		}
	}

	for _, methodology := range catalog.Methodologies {
		doc, err := json.Marshal(methodology)
		if err != nil {
			return fmt.Errorf("marshaling methodology %s: %w", methodology.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO methodologies (id, doc) VALUES (?, ?)`,
			methodology.ID, string(doc),
		); err != nil {
			return fmt.Errorf("inserting methodology %s: %w", methodology.ID, err)
		}
		for _, capabilityID := range methodology.ApplicableTo {
			// First mapping wins as the capability's primary methodology.
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO capability_methodologies (capability_id, methodology_id) VALUES (?, ?)`,
				capabilityID, methodology.ID,
			); err != nil {
				return fmt.Errorf("mapping methodology %s: %w", methodology.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}

	s.logger.Info("Capability catalog seeded", map[string]interface{}{
		"operation":     "catalog_seed",
		"capabilities":  len(catalog.Capabilities),
		"methodologies": len(catalog.Methodologies),
	})
	return nil
}

// ListEnabledCapabilities implements core.CapabilityStore. rowid order
// preserves catalog insertion order.
func (s *SQLiteStore) ListEnabledCapabilities(ctx context.Context) ([]*core.Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM capabilities WHERE enabled = 1 ORDER BY rowid`)
	if err != nil {
		return nil, core.NewEngineError("store.ListEnabledCapabilities", "store",
			fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
	}
	defer rows.Close()

	var capabilities []*core.Capability
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning capability: %w", err)
		}
		var capability core.Capability
		if err := json.Unmarshal([]byte(doc), &capability); err != nil {
			return nil, fmt.Errorf("unmarshaling capability: %w", err)
		}
		capabilities = append(capabilities, &capability)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}
	return capabilities, nil
}

// KeywordSearch implements core.CapabilityStore with a grouped count over
// the keyword side table, enabled capabilities only.
func (s *SQLiteStore) KeywordSearch(ctx context.Context, tokens []string) ([]core.KeywordHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(token)
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		placeholders = append(placeholders, "?")
		args = append(args, token)
	}

	query := fmt.Sprintf(`
		SELECT ck.capability_id, COUNT(*) AS score
		FROM capability_keywords ck
		JOIN capabilities c ON c.id = ck.capability_id
		WHERE c.enabled = 1 AND ck.keyword IN (%s)
		GROUP BY ck.capability_id
		ORDER BY score DESC, c.rowid ASC`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewEngineError("store.KeywordSearch", "store",
			fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
	}
	defer rows.Close()

	var hits []core.KeywordHit
	for rows.Next() {
		var hit core.KeywordHit
		if err := rows.Scan(&hit.CapabilityID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}
	return hits, nil
}

// MethodologyFor implements core.CapabilityStore.
func (s *SQLiteStore) MethodologyFor(ctx context.Context, capabilityID string) (*core.Methodology, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT m.doc
		FROM methodologies m
		JOIN capability_methodologies cm ON cm.methodology_id = m.id
		WHERE cm.capability_id = ?`,
		capabilityID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrMethodologyNotFound
	}
	if err != nil {
		return nil, &core.EngineError{Op: "store.MethodologyFor", Kind: "store", ID: capabilityID,
			Err: fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)}
	}

	var methodology core.Methodology
	if err := json.Unmarshal([]byte(doc), &methodology); err != nil {
		return nil, fmt.Errorf("unmarshaling methodology: %w", err)
	}
	return &methodology, nil
}
