// Package schema holds the dataset schema document and the per-chunk
// validator that checks records against it.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Property constrains a single column.
type Property struct {
	Type    string   `json:"type" yaml:"type"` // string, number, integer, boolean, date, date-time
	Minimum *float64 `json:"minimum" yaml:"minimum"`
	Maximum *float64 `json:"maximum" yaml:"maximum"`
	Format  string   `json:"format" yaml:"format"` // date, date-time, email, uri, uuid, identifier, percentage
}

// Document is the schema for one dataset: per-column constraints plus the
// list of columns that must be non-null in every record.
type Document struct {
	Properties map[string]Property `json:"properties" yaml:"properties"`
	Required   []string            `json:"required" yaml:"required"`
}

func (d *Document) IsRequired(col string) bool {
	for _, r := range d.Required {
		if r == col {
			return true
		}
	}
	return false
}

// Load reads a schema document from a JSON or YAML file, selected by
// extension.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &doc)
	case ".json":
		err = json.Unmarshal(b, &doc)
	default:
		return nil, fmt.Errorf("schema: unsupported extension %q (want .json/.yaml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	if doc.Properties == nil {
		doc.Properties = map[string]Property{}
	}
	return &doc, nil
}
