package quality

import (
	"github.com/openpheno/phenoqc/pkg/table"
)

// Issue is a single row-level quality finding with a machine-readable label.
type Issue struct {
	Row   int    `json:"row"`
	Issue string `json:"issue"`
}

const (
	IssueDuplicateIdentifier = "duplicate_identifier"
	IssueMissingIdentifier   = "missing_identifier"
	IssueMissingSource       = "missing_source"
)

// CheckTraceability reports rows in a chunk whose identifier columns contain
// a null, and rows whose configured provenance column is null. Duplicate
// identifiers span chunks, so the orchestrator derives those from its running
// key set rather than here.
func CheckTraceability(f *table.Frame, idCols []string, sourceCol string) []Issue {
	var out []Issue
	for r := 0; r < f.Rows(); r++ {
		for _, id := range idCols {
			col, ok := f.Column(id)
			if !ok || col.IsNull(r) {
				out = append(out, Issue{Row: f.RowOffset() + r, Issue: IssueMissingIdentifier})
				break
			}
		}
	}
	if sourceCol != "" && f.HasColumn(sourceCol) {
		col, _ := f.Column(sourceCol)
		for r := 0; r < f.Rows(); r++ {
			if col.IsNull(r) {
				out = append(out, Issue{Row: f.RowOffset() + r, Issue: IssueMissingSource})
			}
		}
	}
	return out
}
