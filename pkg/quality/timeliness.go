package quality

import (
	"time"

	"github.com/openpheno/phenoqc/pkg/schema"
	"github.com/openpheno/phenoqc/pkg/table"
)

const (
	IssueLagExceeded        = "lag_exceeded"
	IssueMissingInvalidDate = "missing_or_invalid_date"
)

// CheckTimeliness reports rows whose date column is missing, unparseable, or
// older than maxLagDays relative to now. A chunk without the column yields
// nothing.
func CheckTimeliness(f *table.Frame, dateCol string, maxLagDays int, now time.Time) []Issue {
	if dateCol == "" || !f.HasColumn(dateCol) {
		return nil
	}
	col, _ := f.Column(dateCol)
	maxLag := time.Duration(maxLagDays) * 24 * time.Hour
	var out []Issue
	for r := 0; r < f.Rows(); r++ {
		if col.IsNull(r) {
			out = append(out, Issue{Row: f.RowOffset() + r, Issue: IssueMissingInvalidDate})
			continue
		}
		t, ok := schema.ParseDate(f.CellString(r, dateCol))
		if !ok {
			out = append(out, Issue{Row: f.RowOffset() + r, Issue: IssueMissingInvalidDate})
			continue
		}
		if now.Sub(t) > maxLag {
			out = append(out, Issue{Row: f.RowOffset() + r, Issue: IssueLagExceeded})
		}
	}
	return out
}
