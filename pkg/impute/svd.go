package impute

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/openpheno/phenoqc/pkg/table"
)

const svdIterations = 20

// applySVD fills the numeric columns assigned the svd strategy by low-rank
// matrix completion: alternate a truncated SVD reconstruction with
// re-inserting the observed cells. The rank must stay below min(rows, cols),
// otherwise the group degrades to a mean fill and the report says so.
func (e *Engine) applySVD(f *table.Frame, effs []Effective, res *Result) {
	targets := e.numericColumns(f, effs, res, "svd")
	if len(targets) == 0 {
		return
	}
	cols := e.featureColumns(f, targets)
	X := matrixOf(f, cols)
	maxRank := min(len(X), len(cols)) - 1

	rank := effs[0].Params.Rank
	if rank <= 0 {
		rank = maxRank
	}
	if rank > maxRank {
		rank = maxRank
	}

	if rank < 1 {
		e.log.WithField("columns", len(cols)).Warn("svd infeasible for matrix shape; falling back to mean fill")
		e.svdFallback(f, targets, X, res)
		return
	}
	filled, ok := svdFillMatrix(X, rank)
	if !ok {
		e.log.Warn("svd factorization failed; falling back to mean fill")
		e.svdFallback(f, targets, X, res)
		return
	}
	writeBack(f, targets, filled, res)
	for _, name := range targets {
		res.Resolved = append(res.Resolved, Resolved{Column: name, Strategy: "svd", Params: map[string]any{"rank": rank}})
	}
	e.noteSVDTuning(targets, res)
}

func (e *Engine) svdFallback(f *table.Frame, targets []string, X [][]float64, res *Result) {
	ncol := 0
	if len(X) > 0 {
		ncol = len(X[0])
	}
	means := columnMeans(X, ncol)
	out := cloneMatrix(X)
	for _, row := range out {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = means[j]
			}
		}
	}
	writeBack(f, targets, out, res)
	for _, name := range targets {
		res.Resolved = append(res.Resolved, Resolved{Column: name, Strategy: "svd", Note: "fallback_mean"})
	}
	e.noteSVDTuning(targets, res)
}

func (e *Engine) noteSVDTuning(cols []string, res *Result) {
	if e.cfg.Tuning.Enable {
		for _, name := range cols {
			res.Resolved = append(res.Resolved, Resolved{Column: name, Strategy: "svd", Note: "tuning_unsupported"})
		}
	}
}

func svdFillMatrix(X [][]float64, rank int) ([][]float64, bool) {
	nrow, ncol := len(X), len(X[0])
	means := columnMeans(X, ncol)
	cur := mat.NewDense(nrow, ncol, nil)
	for r, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				cur.Set(r, j, means[j])
			} else {
				cur.Set(r, j, v)
			}
		}
	}
	var svd mat.SVD
	for it := 0; it < svdIterations; it++ {
		if !svd.Factorize(cur, mat.SVDThin) {
			return nil, false
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		vals := svd.Values(nil)
		for i := rank; i < len(vals); i++ {
			vals[i] = 0
		}
		sigma := mat.NewDiagDense(len(vals), vals)

		var approx mat.Dense
		approx.Product(&u, sigma, v.T())
		// keep observed cells pinned, update only the missing ones
		for r, row := range X {
			for j, val := range row {
				if math.IsNaN(val) {
					cur.Set(r, j, approx.At(r, j))
				}
			}
		}
	}
	out := make([][]float64, nrow)
	for r := range out {
		out[r] = make([]float64, ncol)
		for j := 0; j < ncol; j++ {
			out[r][j] = cur.At(r, j)
		}
	}
	return out, true
}
