package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
ontologies:
  - id: HPO
    file: hp.obo
    format: obo
default_ontologies: [HPO]
unique_identifiers: [SampleID]
phenotype_columns: [ObservedPhenotype]
imputation:
  strategy: knn
  params:
    n_neighbors: 7
quality:
  date_column: RecordedDate
  max_lag_days: 365
chunk_size: 500
output_format: jsonl
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	require.Len(t, cfg.Ontologies, 1)
	assert.Equal(t, "HPO", cfg.Ontologies[0].ID)
	assert.Equal(t, []string{"SampleID"}, cfg.UniqueIdentifiers)
	assert.Equal(t, "knn", cfg.Imputation.Strategy)
	assert.Equal(t, 7, cfg.Imputation.Params.NNeighbors)
	assert.Equal(t, 365, cfg.Quality.MaxLagDays)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, "jsonl", cfg.OutputFormat)
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeFile(t, "config.json", `{"unique_identifiers":["SampleID"]}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, 80, cfg.FuzzyThreshold)
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "config.toml", "chunk_size = 250\noutput_format = \"parquet\"\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.ChunkSize)
	assert.Equal(t, "parquet", cfg.OutputFormat)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeFile(t, "config.ini", "chunk_size=1")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoadCustomMappingsFlat(t *testing.T) {
	p := writeFile(t, "custom.json", `{"  Seizure ": "HP:0001250"}`)
	m, err := LoadCustomMappings(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"seizure": "HP:0001250"}, m, "keys are normalized like lookup terms")
}

func TestLoadCustomMappingsNested(t *testing.T) {
	p := writeFile(t, "custom.yaml", `
short stature:
  HPO: HP:0004322
  DO: DOID:0111724
`)
	m, err := LoadCustomMappings(p)
	require.NoError(t, err)
	// nested ids collapse to the first ontology in sorted order
	assert.Equal(t, map[string]string{"short stature": "DOID:0111724"}, m)
}

func TestLoadCustomMappingsEmptyPath(t *testing.T) {
	m, err := LoadCustomMappings("")
	require.NoError(t, err)
	assert.Nil(t, m)
}
