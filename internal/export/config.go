// Package export implements the Export Engine (C13): loads a YAML mapper
// config per template, validates required canonical keys are present,
// coerces well-known value types, and renders an XML or CSV document with
// lineage comments, hashing and storing the result (spec.md §4.9).
//
// Grounded on the registry's internal/registry/service orchestration style
// for Engine.Run, and on AKJUS-bsc-erigon's sprig-augmented text/template
// usage for the section/field renderer.
package export

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// Format is the output document shape a mapper template declares.
type Format string

const (
	FormatXML Format = "xml"
	FormatCSV Format = "csv"
)

// CSVMapping is the §4.9 "csv: {header, mapping}" block.
type CSVMapping struct {
	Header  []string          `yaml:"header"`
	Mapping map[string]string `yaml:"mapping"` // header column -> canonical key
}

// MapperConfig is one template's YAML mapper declaration (§4.9 step 1).
type MapperConfig struct {
	Format   Format                       `yaml:"format"`
	Root     string                       `yaml:"root"`
	Required []string                     `yaml:"required"`
	Sections map[string]map[string]string `yaml:"sections"` // section name -> canonicalKey -> XPATH
	CSV      *CSVMapping                  `yaml:"csv"`
}

// LoadMapperConfig parses a mapper config from YAML bytes.
func LoadMapperConfig(data []byte) (*MapperConfig, error) {
	var cfg MapperConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("export: mapper config parse failed: %w", err)
	}
	if cfg.Format == "" {
		return nil, fmt.Errorf("export: mapper config missing format")
	}
	if cfg.Format == FormatCSV && cfg.CSV == nil {
		return nil, fmt.Errorf("export: csv format requires a csv mapping block")
	}
	if cfg.Format == FormatXML && cfg.Root == "" {
		return nil, fmt.Errorf("export: xml format requires a root element name")
	}
	return &cfg, nil
}

// MapperLoader resolves the mapper config for a (template, version) pair.
// Production implementations read from a config directory or object store
// keyed by MapperVersion; MemoryMapperLoader serves a fixed in-process map
// for tests and single-file deployments.
type MapperLoader interface {
	Load(template domain.ExportTemplate, version string) (*MapperConfig, error)
}

// MemoryMapperLoader serves mapper configs registered at construction time.
type MemoryMapperLoader struct {
	configs map[string]*MapperConfig
}

// NewMemoryMapperLoader builds a loader from raw YAML documents keyed by
// "<template>:<version>".
func NewMemoryMapperLoader(raw map[string][]byte) (*MemoryMapperLoader, error) {
	configs := make(map[string]*MapperConfig, len(raw))
	for key, doc := range raw {
		cfg, err := LoadMapperConfig(doc)
		if err != nil {
			return nil, fmt.Errorf("export: loading mapper %q: %w", key, err)
		}
		configs[key] = cfg
	}
	return &MemoryMapperLoader{configs: configs}, nil
}

func (l *MemoryMapperLoader) Load(template domain.ExportTemplate, version string) (*MapperConfig, error) {
	key := fmt.Sprintf("%s:%s", template, version)
	cfg, ok := l.configs[key]
	if !ok {
		return nil, fmt.Errorf("export: no mapper config for %s", key)
	}
	return cfg, nil
}
