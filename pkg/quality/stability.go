package quality

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/openpheno/phenoqc/pkg/impute"
	"github.com/openpheno/phenoqc/pkg/table"
)

// StabilityRow reports how reproducible a column's imputation is: the mean
// and variance of its reconstruction error across repeated masked re-runs.
type StabilityRow struct {
	Column    string  `json:"column"`
	Repeats   int     `json:"repeats"`
	Scoring   string  `json:"scoring"`
	ScoreMean float64 `json:"score_mean"`
	ScoreVar  float64 `json:"score_var"`
}

// ImputationStability re-imputes the table's numeric columns several times,
// each time hiding a random fraction of the observed cells, and scores the
// reconstruction per column. High variance across repeats means the
// configured strategy is sensitive to which cells happen to be present.
func ImputationStability(f *table.Frame, engineCfg impute.Config, cfg StabilityConfig) []StabilityRow {
	cfg = cfg.withDefaults()
	seed := cfg.RandomState
	if seed == 0 {
		seed = 42
	}

	var cols []string
	for _, cs := range f.Schema().Columns {
		if !cs.Type.Numeric() || engineCfg.IsProtected(cs.Name) {
			continue
		}
		eff := engineCfg.EffectiveFor(cs.Name)
		if eff.Strategy == impute.StrategyNone || eff.Strategy == impute.StrategyUnknown {
			continue
		}
		cols = append(cols, cs.Name)
	}
	if len(cols) == 0 || f.Rows() == 0 {
		return nil
	}

	rmse := strings.EqualFold(cfg.Scoring, "rmse")
	scores := make(map[string][]float64, len(cols))
	for rep := 0; rep < cfg.Repeats; rep++ {
		rng := rand.New(rand.NewSource(seed + int64(rep)))
		repScores := stabilityRound(f, cols, engineCfg, cfg.MaskFraction, rmse, rng)
		for name, s := range repScores {
			scores[name] = append(scores[name], s)
		}
	}

	var out []StabilityRow
	for _, name := range cols {
		ss := scores[name]
		if len(ss) == 0 {
			continue
		}
		mean, variance := stat.MeanVariance(ss, nil)
		if len(ss) < 2 {
			variance = 0
		}
		out = append(out, StabilityRow{
			Column:    name,
			Repeats:   len(ss),
			Scoring:   strings.ToUpper(cfg.Scoring),
			ScoreMean: mean,
			ScoreVar:  variance,
		})
	}
	return out
}

// stabilityRound masks a sample of observed cells, re-imputes a scratch copy
// of the numeric columns, and returns the per-column reconstruction error
// over the masked cells.
func stabilityRound(f *table.Frame, cols []string, engineCfg impute.Config, frac float64, rmse bool, rng *rand.Rand) map[string]float64 {
	type cell struct {
		row int
		col string
	}
	var observed []cell
	for _, name := range cols {
		c, _ := f.Column(name)
		for r := 0; r < f.Rows(); r++ {
			if !c.IsNull(r) {
				observed = append(observed, cell{r, name})
			}
		}
	}
	nMask := int(frac * float64(len(observed)))
	if nMask < 1 {
		return nil
	}
	rng.Shuffle(len(observed), func(i, j int) { observed[i], observed[j] = observed[j], observed[i] })
	held := observed[:nMask]

	scratch := cloneColumns(f, cols)
	truth := make(map[cell]float64, len(held))
	for _, c := range held {
		v, _ := scratch.Float64(c.row, c.col)
		truth[c] = v
		col, _ := scratch.Column(c.col)
		col.SetNull(c.row)
	}

	impute.NewEngine(engineCfg, nil).Apply(scratch)

	sums := make(map[string]float64, len(cols))
	counts := make(map[string]int, len(cols))
	for _, c := range held {
		got, ok := scratch.Float64(c.row, c.col)
		if !ok {
			continue
		}
		d := got - truth[c]
		if rmse {
			sums[c.col] += d * d
		} else {
			sums[c.col] += math.Abs(d)
		}
		counts[c.col]++
	}
	out := make(map[string]float64, len(sums))
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := sums[name] / float64(counts[name])
		if rmse {
			s = math.Sqrt(s)
		}
		out[name] = s
	}
	return out
}

// cloneColumns copies the named columns of f into a fresh frame.
func cloneColumns(f *table.Frame, cols []string) *table.Frame {
	var s table.Schema
	for _, cs := range f.Schema().Columns {
		for _, name := range cols {
			if cs.Name == name {
				s.Columns = append(s.Columns, cs)
			}
		}
	}
	out := table.NewFrame(s)
	for r := 0; r < f.Rows(); r++ {
		out.AppendNullRow()
		for _, name := range cols {
			if v, ok := f.Value(r, name); ok {
				_ = out.SetCell(r, name, v)
			}
		}
	}
	return out
}
