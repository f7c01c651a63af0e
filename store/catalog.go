package store

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aacamara/capmatch/core"
)

// Catalog is the on-disk representation of a capability catalog. Catalogs
// are authored by administrators as YAML:
//
//	capabilities:
//	  - id: qbr_generation
//	    name: Generate QBR
//	    keywords: [qbr, quarterly, review]
//	    trigger_patterns:
//	      - "generate a qbr for {customer}"
//	    enabled: true
//	methodologies:
//	  - id: qbr_methodology
//	    name: QBR Preparation
//	    applicable_to: [qbr_generation]
type Catalog struct {
	Capabilities  []*core.Capability  `yaml:"capabilities"`
	Methodologies []*core.Methodology `yaml:"methodologies"`
}

// LoadCatalogFile reads and validates a YAML catalog. Entries without an
// ID are assigned one; entries without a name are rejected.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	for i, capability := range catalog.Capabilities {
		if capability.Name == "" {
			return nil, fmt.Errorf("capability %d has no name: %w", i, core.ErrInvalidConfiguration)
		}
		if capability.ID == "" {
			capability.ID = uuid.NewString()
		}
	}
	for i, methodology := range catalog.Methodologies {
		if methodology.Name == "" {
			return nil, fmt.Errorf("methodology %d has no name: %w", i, core.ErrInvalidConfiguration)
		}
		if methodology.ID == "" {
			methodology.ID = uuid.NewString()
		}
	}
	return &catalog, nil
}

// NewMemoryStoreFromFile loads a YAML catalog into a fresh memory store.
func NewMemoryStoreFromFile(path string) (*MemoryStore, error) {
	catalog, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStoreFromCatalog(catalog), nil
}
