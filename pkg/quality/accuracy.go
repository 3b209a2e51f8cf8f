package quality

import (
	"sort"

	"github.com/openpheno/phenoqc/pkg/schema"
	"github.com/openpheno/phenoqc/pkg/table"
)

// AccuracyIssue reports one numeric cell outside its schema bounds. Row is
// the file-global row index.
type AccuracyIssue struct {
	Row     int      `json:"row"`
	Column  string   `json:"column"`
	Value   float64  `json:"value"`
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// CheckAccuracy scans a chunk for cells that violate the schema's
// minimum/maximum bounds. Non-coercible cells are the validator's concern,
// not an accuracy finding.
func CheckAccuracy(f *table.Frame, doc *schema.Document) []AccuracyIssue {
	var out []AccuracyIssue
	cols := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	for _, name := range cols {
		prop := doc.Properties[name]
		if prop.Minimum == nil && prop.Maximum == nil {
			continue
		}
		if !f.HasColumn(name) {
			continue
		}
		for r := 0; r < f.Rows(); r++ {
			v, ok := f.Float64(r, name)
			if !ok {
				continue
			}
			if (prop.Minimum != nil && v < *prop.Minimum) || (prop.Maximum != nil && v > *prop.Maximum) {
				out = append(out, AccuracyIssue{
					Row:     f.RowOffset() + r,
					Column:  name,
					Value:   v,
					Minimum: prop.Minimum,
					Maximum: prop.Maximum,
				})
			}
		}
	}
	return out
}
