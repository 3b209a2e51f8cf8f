package impute

import (
	"math"
	"math/rand"
	"sort"
	"strings"
)

var defaultNeighborGrid = []int{3, 5, 7, 9}

const (
	defaultMaskFraction = 0.1
	defaultMaxCells     = 20000
	defaultRandomState  = 42
)

type cellRef struct{ r, j int }

// tuneKNN selects a neighbor count by masking a random sample of observed
// cells, re-imputing them with each candidate k, and scoring the
// reconstruction against the held-out truth. Ties go to the smaller k.
// Returns false when there are no observed cells to hold out.
func (e *Engine) tuneKNN(X [][]float64) (int, bool) {
	t := e.cfg.Tuning
	frac := t.MaskFraction
	if frac <= 0 || frac >= 1 {
		frac = defaultMaskFraction
	}
	maxCells := t.MaxCells
	if maxCells <= 0 {
		maxCells = defaultMaxCells
	}
	seed := t.RandomState
	if seed == 0 {
		seed = defaultRandomState
	}
	grid := t.Grid["n_neighbors"]
	if len(grid) == 0 {
		grid = defaultNeighborGrid
	}
	grid = append([]int(nil), grid...)
	sort.Ints(grid)

	var observed []cellRef
	for r, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				observed = append(observed, cellRef{r, j})
			}
		}
	}
	nMask := int(frac * float64(len(observed)))
	if nMask > maxCells {
		nMask = maxCells
	}
	if nMask < 1 {
		return 0, false
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(observed), func(i, j int) { observed[i], observed[j] = observed[j], observed[i] })
	held := observed[:nMask]

	masked := cloneMatrix(X)
	for _, c := range held {
		masked[c.r][c.j] = math.NaN()
	}

	ncol := len(X[0])
	ks := make([]int, ncol)
	bestK, bestScore := 0, math.Inf(1)
	for _, k := range grid {
		if k <= 0 {
			continue
		}
		for j := range ks {
			ks[j] = k
		}
		score, ok := e.holdoutScore(X, knnFillMatrix(masked, ks), held)
		if !ok {
			continue
		}
		if score < bestScore {
			bestK, bestScore = k, score
		}
	}
	if bestK == 0 {
		return 0, false
	}
	return bestK, true
}

// holdoutScore compares reconstructed values to the held-out truth using the
// configured metric, MAE by default or RMSE.
func (e *Engine) holdoutScore(truth, filled [][]float64, held []cellRef) (float64, bool) {
	rmse := strings.EqualFold(e.cfg.Tuning.Scoring, "rmse")
	sum, n := 0.0, 0
	for _, c := range held {
		got := filled[c.r][c.j]
		if math.IsNaN(got) {
			continue
		}
		d := got - truth[c.r][c.j]
		if rmse {
			sum += d * d
		} else {
			sum += math.Abs(d)
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	score := sum / float64(n)
	if rmse {
		score = math.Sqrt(score)
	}
	return score, true
}
