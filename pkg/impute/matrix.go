package impute

import (
	"math"
	"strconv"

	"github.com/openpheno/phenoqc/pkg/table"
)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// numericColumns filters a strategy group down to the columns the joint
// solvers can work on, warning about the rest.
func (e *Engine) numericColumns(f *table.Frame, effs []Effective, res *Result, strategy string) []string {
	cols := make([]string, 0, len(effs))
	for _, eff := range effs {
		cs, _ := f.Schema().Col(eff.Column)
		if !cs.Type.Numeric() {
			e.log.WithField("column", eff.Column).Warnf("%s imputation not applicable to %s column; skipped", strategy, cs.Type)
			res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: strategy, Note: "not_numeric_skipped"})
			continue
		}
		cols = append(cols, eff.Column)
	}
	return cols
}

// featureColumns builds the solver matrix layout: the target columns first,
// then every other numeric non-protected column as a predictor. Complete
// columns carry signal the targets regress on even though they are never
// written back.
func (e *Engine) featureColumns(f *table.Frame, targets []string) []string {
	seen := make(map[string]bool, len(targets))
	for _, c := range targets {
		seen[c] = true
	}
	cols := append([]string(nil), targets...)
	for _, cs := range f.Schema().Columns {
		if seen[cs.Name] || !cs.Type.Numeric() || e.cfg.IsProtected(cs.Name) {
			continue
		}
		cols = append(cols, cs.Name)
	}
	return cols
}

// matrixOf extracts the named columns as a row-major matrix with NaN for
// missing cells.
func matrixOf(f *table.Frame, cols []string) [][]float64 {
	X := make([][]float64, f.Rows())
	for r := range X {
		row := make([]float64, len(cols))
		for j, c := range cols {
			if v, ok := f.Float64(r, c); ok {
				row[j] = v
			} else {
				row[j] = math.NaN()
			}
		}
		X[r] = row
	}
	return X
}

// writeBack copies solved values into the still-null cells of the frame and
// records them in the result masks. cols must be a prefix of the matrix
// layout, so predictor-only columns past the prefix are never written.
// Non-finite solutions are left missing.
func writeBack(f *table.Frame, cols []string, X [][]float64, res *Result) {
	for j, name := range cols {
		col, _ := f.Column(name)
		mask := res.mask(name, f.Rows())
		for r := 0; r < f.Rows(); r++ {
			if !col.IsNull(r) {
				continue
			}
			v := X[r][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			setNumeric(f, r, name, v)
			mask[r] = true
		}
	}
}

// columnMeans returns per-column means over the observed cells of X, 0 when a
// column has no observed cells.
func columnMeans(X [][]float64, ncol int) []float64 {
	sums := make([]float64, ncol)
	counts := make([]int, ncol)
	for _, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				sums[j] += v
				counts[j]++
			}
		}
	}
	means := make([]float64, ncol)
	for j := range means {
		if counts[j] > 0 {
			means[j] = sums[j] / float64(counts[j])
		}
	}
	return means
}

func cloneMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
