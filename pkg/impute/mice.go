package impute

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/openpheno/phenoqc/pkg/table"
)

// applyMICE fills the numeric columns assigned the mice strategy by chained
// equations: repeated rounds of least-squares regression of each incomplete
// column on the remaining numeric columns, starting from a mean fill. The
// round-robin order and the absence of posterior noise make the result
// deterministic.
func (e *Engine) applyMICE(f *table.Frame, effs []Effective, res *Result) {
	targets := e.numericColumns(f, effs, res, "mice")
	if len(targets) == 0 {
		return
	}
	maxIter := effs[0].Params.MaxIter
	X := matrixOf(f, e.featureColumns(f, targets))
	writeBack(f, targets, miceFillMatrix(X, maxIter), res)
	for _, name := range targets {
		res.Resolved = append(res.Resolved, Resolved{Column: name, Strategy: "mice", Params: map[string]any{"max_iter": maxIter}})
	}
	if e.cfg.Tuning.Enable {
		for _, name := range targets {
			res.Resolved = append(res.Resolved, Resolved{Column: name, Strategy: "mice", Note: "tuning_unsupported"})
		}
	}
}

func miceFillMatrix(X [][]float64, maxIter int) [][]float64 {
	nrow, ncol := len(X), 0
	if nrow > 0 {
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
	if ncol < 2 {
		return out
	}
	for it := 0; it < maxIter; it++ {
		for j := 0; j < ncol; j++ {
			var trainRows, missRows []int
			for r := 0; r < nrow; r++ {
				if math.IsNaN(X[r][j]) {
					missRows = append(missRows, r)
				} else {
					trainRows = append(trainRows, r)
				}
			}
			if len(missRows) == 0 || len(trainRows) < ncol {
				continue
			}
			beta, ok := solveOLS(out, trainRows, j, ncol)
			if !ok {
				continue
			}
			for _, r := range missRows {
				out[r][j] = predictOLS(out[r], j, beta)
			}
		}
	}
	return out
}

// solveOLS fits target column j on the remaining columns plus an intercept
// over the given rows. Returns false when the system is singular.
func solveOLS(X [][]float64, rows []int, j, ncol int) ([]float64, bool) {
	n, p := len(rows), ncol // ncol-1 features + intercept
	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, r := range rows {
		a.Set(i, 0, 1)
		c := 1
		for k := 0; k < ncol; k++ {
			if k == j {
				continue
			}
			a.Set(i, c, X[r][k])
			c++
		}
		b.SetVec(i, X[r][j])
	}
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, false
	}
	beta := make([]float64, p)
	for i := range beta {
		beta[i] = sol.AtVec(i)
	}
	return beta, true
}

func predictOLS(row []float64, j int, beta []float64) float64 {
	v := beta[0]
	c := 1
	for k := range row {
		if k == j {
			continue
		}
		v += beta[c] * row[k]
		c++
	}
	return v
}
