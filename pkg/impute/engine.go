package impute

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/openpheno/phenoqc/pkg/table"
)

// Resolved records the parameters actually used for one column, for the
// audit trail in the QC report.
type Resolved struct {
	Column   string         `json:"column"`
	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params,omitempty"`
	Note     string         `json:"note,omitempty"`
}

// Result reports what the engine did to a chunk: which cells were filled
// per column, and the resolved parameters per column.
type Result struct {
	Masks    map[string][]bool
	Resolved []Resolved
}

// ImputedCount returns the number of filled cells across all columns.
func (r *Result) ImputedCount() int {
	n := 0
	for _, m := range r.Masks {
		for _, b := range m {
			if b {
				n++
			}
		}
	}
	return n
}

// Engine applies the configured imputation strategies to a chunk in place.
type Engine struct {
	cfg Config
	log *logrus.Entry
}

func NewEngine(cfg Config, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{cfg: cfg, log: log}
}

func (e *Engine) Config() Config { return e.cfg }

// Apply fills missing values in f according to the per-column effective
// configuration. Protected columns and columns with no missing cells are
// untouched. Unknown strategies log a warning and leave the column as-is.
func (e *Engine) Apply(f *table.Frame) *Result {
	res := &Result{Masks: make(map[string][]bool)}
	groups := make(map[Strategy][]Effective)

	for _, cs := range f.Schema().Columns {
		if e.cfg.IsProtected(cs.Name) {
			continue
		}
		col, _ := f.Column(cs.Name)
		if countNulls(col) == 0 {
			continue
		}
		eff := e.cfg.EffectiveFor(cs.Name)
		switch eff.Strategy {
		case StrategyNone:
			continue
		case StrategyUnknown:
			e.log.WithField("column", cs.Name).Warnf("unknown imputation strategy %q; column left untouched", eff.RawStrategy)
			res.Resolved = append(res.Resolved, Resolved{Column: cs.Name, Strategy: eff.RawStrategy, Note: "unknown_strategy"})
			continue
		}
		groups[eff.Strategy] = append(groups[eff.Strategy], eff)
	}

	for _, eff := range groups[StrategyMean] {
		e.fillStat(f, eff, res, mean)
	}
	for _, eff := range groups[StrategyMedian] {
		e.fillStat(f, eff, res, median)
	}
	for _, eff := range groups[StrategyMode] {
		e.fillMode(f, eff, res)
	}
	if effs := groups[StrategyKNN]; len(effs) > 0 {
		e.applyKNN(f, effs, res)
	}
	if effs := groups[StrategyMICE]; len(effs) > 0 {
		e.applyMICE(f, effs, res)
	}
	if effs := groups[StrategySVD]; len(effs) > 0 {
		e.applySVD(f, effs, res)
	}
	return res
}

// fillStat handles mean and median: numeric columns only, statistic computed
// over the currently available values.
func (e *Engine) fillStat(f *table.Frame, eff Effective, res *Result, stat func([]float64) float64) {
	cs, _ := f.Schema().Col(eff.Column)
	if !cs.Type.Numeric() {
		e.log.WithField("column", eff.Column).Warnf("%s imputation not applicable to %s column; skipped", eff.Strategy, cs.Type)
		res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: eff.Strategy.String(), Note: "not_numeric_skipped"})
		return
	}
	vals := observedValues(f, eff.Column)
	if len(vals) == 0 {
		return
	}
	fillNumeric(f, eff.Column, stat(vals), res)
	res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: eff.Strategy.String()})
	e.noteTuningUnsupported(eff, res)
}

func (e *Engine) fillMode(f *table.Frame, eff Effective, res *Result) {
	col, _ := f.Column(eff.Column)
	counts := make(map[string]int)
	for r := 0; r < col.Len(); r++ {
		if col.IsNull(r) {
			continue
		}
		counts[f.CellString(r, eff.Column)]++
	}
	if len(counts) == 0 {
		e.log.WithField("column", eff.Column).Warn("no mode found; column left untouched")
		res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: "mode", Note: "no_observed_values"})
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// ties break lexicographically so repeated runs agree
	sort.Strings(keys)
	best, bestN := keys[0], counts[keys[0]]
	for _, k := range keys[1:] {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	mask := res.mask(eff.Column, f.Rows())
	for r := 0; r < col.Len(); r++ {
		if !col.IsNull(r) {
			continue
		}
		if setFromString(f, r, eff.Column, best) {
			mask[r] = true
		}
	}
	res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: "mode"})
	e.noteTuningUnsupported(eff, res)
}

func (e *Engine) noteTuningUnsupported(eff Effective, res *Result) {
	if e.cfg.Tuning.Enable && eff.Strategy != StrategyKNN {
		res.Resolved = append(res.Resolved, Resolved{Column: eff.Column, Strategy: eff.Strategy.String(), Note: "tuning_unsupported"})
	}
}

func (r *Result) mask(col string, n int) []bool {
	m, ok := r.Masks[col]
	if !ok {
		m = make([]bool, n)
		r.Masks[col] = m
	}
	return m
}

func countNulls(col table.AnyColumn) int {
	n := 0
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			n++
		}
	}
	return n
}

func observedValues(f *table.Frame, col string) []float64 {
	c, _ := f.Column(col)
	out := make([]float64, 0, c.Len())
	for r := 0; r < c.Len(); r++ {
		if c.IsNull(r) {
			continue
		}
		if x, ok := f.Float64(r, col); ok {
			out = append(out, x)
		}
	}
	return out
}

func fillNumeric(f *table.Frame, col string, v float64, res *Result) {
	c, _ := f.Column(col)
	mask := res.mask(col, f.Rows())
	for r := 0; r < c.Len(); r++ {
		if !c.IsNull(r) {
			continue
		}
		setNumeric(f, r, col, v)
		mask[r] = true
	}
}

func setNumeric(f *table.Frame, row int, col string, v float64) {
	if c := f.Int(col); c != nil {
		c.Set(row, int64(math.Round(v)))
		return
	}
	if c := f.Float(col); c != nil {
		c.Set(row, v)
	}
}

func setFromString(f *table.Frame, row int, col, s string) bool {
	cs, _ := f.Schema().Col(col)
	switch cs.Type {
	case table.KindString:
		f.Str(col).Set(row, s)
		return true
	case table.KindBool:
		f.Bool(col).Set(row, s == "true")
		return true
	case table.KindInt, table.KindFloat:
		if x, err := parseFloat(s); err == nil {
			setNumeric(f, row, col, x)
			return true
		}
	}
	return false
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
