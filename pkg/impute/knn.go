package impute

import (
	"math"

	"github.com/sjwhitworth/golearn/knn"
	"gonum.org/v1/gonum/mat"

	"github.com/openpheno/phenoqc/pkg/table"
)

// applyKNN jointly fills every numeric column assigned the knn strategy.
// Each target column gets a regressor trained on the rows where it is
// observed, with every other numeric column (mean-filled) as features.
func (e *Engine) applyKNN(f *table.Frame, effs []Effective, res *Result) {
	targets := e.numericColumns(f, effs, res, "knn")
	if len(targets) == 0 {
		return
	}
	cols := e.featureColumns(f, targets)
	ks := make([]int, len(cols))
	for i := range ks {
		ks[i] = defaultNeighbors
	}
	for i, name := range targets {
		for _, eff := range effs {
			if eff.Column == name {
				ks[i] = eff.Params.NNeighbors
			}
		}
	}
	X := matrixOf(f, cols)

	tuned := false
	if e.cfg.Tuning.Enable {
		if k, ok := e.tuneKNN(X); ok {
			for i := range ks {
				ks[i] = k
			}
			tuned = true
			e.log.WithField("n_neighbors", k).Info("knn tuning selected neighbor count")
		} else {
			e.log.Warn("knn tuning skipped: not enough observed cells")
		}
	}

	writeBack(f, targets, knnFillMatrix(X, ks), res)
	for i, name := range targets {
		r := Resolved{Column: name, Strategy: "knn", Params: map[string]any{"n_neighbors": ks[i]}}
		if tuned {
			r.Note = "tuned"
		}
		res.Resolved = append(res.Resolved, r)
	}
}

// knnFillMatrix returns a copy of X with missing cells predicted by
// per-column KNN regression; ks holds the neighbor count per column. Cells
// that cannot be predicted stay NaN.
func knnFillMatrix(X [][]float64, ks []int) [][]float64 {
	nrow, ncol := len(X), len(ks)
	means := columnMeans(X, ncol)

	feat := cloneMatrix(X)
	for _, row := range feat {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = means[j]
			}
		}
	}

	out := cloneMatrix(X)
	for j := 0; j < ncol; j++ {
		var (
			values  []float64
			numbers []float64
			missing bool
		)
		for r := 0; r < nrow; r++ {
			if math.IsNaN(X[r][j]) {
				missing = true
				continue
			}
			values = append(values, X[r][j])
			numbers = append(numbers, featureRow(feat[r], j)...)
		}
		if !missing || len(values) == 0 {
			continue
		}
		// a single-column group has no features to regress on
		if ncol == 1 {
			for r := 0; r < nrow; r++ {
				if math.IsNaN(X[r][j]) {
					out[r][j] = means[j]
				}
			}
			continue
		}
		k := ks[j]
		if k > len(values) {
			k = len(values)
		}
		reg := knn.NewKnnRegressor("euclidean")
		reg.Fit(values, numbers, len(values), ncol-1)
		for r := 0; r < nrow; r++ {
			if !math.IsNaN(X[r][j]) {
				continue
			}
			out[r][j] = reg.Predict(mat.NewDense(1, ncol-1, featureRow(feat[r], j)), k)
		}
	}
	return out
}

func featureRow(row []float64, skip int) []float64 {
	out := make([]float64, 0, len(row)-1)
	for j, v := range row {
		if j != skip {
			out = append(out, v)
		}
	}
	return out
}
