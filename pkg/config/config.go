// Package config loads the pipeline configuration from YAML, JSON, or TOML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/openpheno/phenoqc/pkg/impute"
	"github.com/openpheno/phenoqc/pkg/ontology"
	"github.com/openpheno/phenoqc/pkg/quality"
)

// Config is the full run configuration consumed by the orchestrator.
type Config struct {
	Ontologies         []ontology.SourceConfig `yaml:"ontologies" json:"ontologies" toml:"ontologies"`
	DefaultOntologies  []string                `yaml:"default_ontologies" json:"default_ontologies" toml:"default_ontologies"`
	FuzzyThreshold     int                     `yaml:"fuzzy_threshold" json:"fuzzy_threshold" toml:"fuzzy_threshold"`
	CacheDir           string                  `yaml:"cache_dir" json:"cache_dir" toml:"cache_dir"`
	CacheExpiryDays    int                     `yaml:"cache_expiry_days" json:"cache_expiry_days" toml:"cache_expiry_days"`
	CustomMappingsFile string                  `yaml:"custom_mappings_file" json:"custom_mappings_file" toml:"custom_mappings_file"`

	UniqueIdentifiers []string `yaml:"unique_identifiers" json:"unique_identifiers" toml:"unique_identifiers"`
	PhenotypeColumns  []string `yaml:"phenotype_columns" json:"phenotype_columns" toml:"phenotype_columns"`

	// ReferenceDataFile points at a dataset whose values the ReferenceColumns
	// of every input must come from. Empty disables referential checks.
	ReferenceDataFile string   `yaml:"reference_data_file" json:"reference_data_file" toml:"reference_data_file"`
	ReferenceColumns  []string `yaml:"reference_columns" json:"reference_columns" toml:"reference_columns"`

	Imputation impute.Config  `yaml:"imputation" json:"imputation" toml:"imputation"`
	Quality    quality.Config `yaml:"quality" json:"quality" toml:"quality"`

	ChunkSize          int    `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`
	Workers            int    `yaml:"workers" json:"workers" toml:"workers"`
	OutputFormat       string `yaml:"output_format" json:"output_format" toml:"output_format"` // csv, jsonl, or parquet
	InvalidFlagColumns bool   `yaml:"invalid_flag_columns" json:"invalid_flag_columns" toml:"invalid_flag_columns"`
	DetectAnomalies    bool   `yaml:"detect_anomalies" json:"detect_anomalies" toml:"detect_anomalies"`
}

const (
	defaultChunkSize = 10000
	defaultWorkers   = 4
)

// Load parses a configuration file; the decoder follows the extension.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return nil, fmt.Errorf("config: unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "csv"
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = ontology.DefaultFuzzyThreshold
	}
}

// LoadCustomMappings reads a term-to-id override map from a JSON or YAML
// file. Two shapes are accepted: a flat {"term": "ID"} object, and a nested
// {"term": {"ONT": "ID"}} object whose inner ids are collapsed to a single
// value. Either way one id per term survives, and the mapper applies it to
// every target ontology. Keys are normalized the same way lookup terms are.
func LoadCustomMappings(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: custom mappings: %w", err)
	}
	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}
	flat := make(map[string]string)
	if err := unmarshal(b, &flat); err == nil {
		out := make(map[string]string, len(flat))
		for term, id := range flat {
			out[ontology.Normalize(term)] = id
		}
		return out, nil
	}
	nested := make(map[string]map[string]string)
	if err := unmarshal(b, &nested); err != nil {
		return nil, fmt.Errorf("config: custom mappings: parse %s: %w", path, err)
	}
	out := make(map[string]string, len(nested))
	for term, byOnt := range nested {
		onts := make([]string, 0, len(byOnt))
		for ont := range byOnt {
			onts = append(onts, ont)
		}
		sort.Strings(onts)
		if len(onts) > 0 {
			out[ontology.Normalize(term)] = byOnt[onts[0]]
		}
	}
	return out, nil
}
