package quality

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/openpheno/phenoqc/pkg/table"
)

// BiasRow is the diagnostic for one imputed numeric column: how the imputed
// values differ in location, spread, and shape from the observed ones.
type BiasRow struct {
	Column   string  `json:"column"`
	SMD      float64 `json:"smd"`
	VarRatio float64 `json:"var_ratio"`
	KSStat   float64 `json:"ks_stat"`
	KSPValue float64 `json:"ks_p_value"`
	Warn     bool    `json:"warn"`
}

// Samples are the per-column observed and imputed values a bias comparison
// works on. The pipeline accumulates these across chunks.
type Samples struct {
	Observed []float64
	Imputed  []float64
}

// ImputationBias compares observed against imputed values per column.
// Columns that ended up all-observed or all-imputed produce no row; the
// comparison is degenerate there.
func ImputationBias(samples map[string]*Samples, cfg BiasConfig) []BiasRow {
	cfg = cfg.withDefaults()
	cols := make([]string, 0, len(samples))
	for name := range samples {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	var out []BiasRow
	for _, name := range cols {
		s := samples[name]
		if s == nil || len(s.Observed) == 0 || len(s.Imputed) == 0 {
			continue
		}
		observed := append([]float64(nil), s.Observed...)
		imputed := append([]float64(nil), s.Imputed...)

		meanObs, varObs := meanVariance(observed)
		meanImp, varImp := meanVariance(imputed)

		smd := math.NaN()
		if pooled := math.Sqrt((varObs + varImp) / 2); pooled > 0 {
			smd = (meanImp - meanObs) / pooled
		}
		varRatio := math.NaN()
		if varObs > 0 {
			varRatio = varImp / varObs
		}

		sort.Float64s(observed)
		sort.Float64s(imputed)
		ksStat := stat.KolmogorovSmirnov(observed, nil, imputed, nil)
		ksP := ksPValue(ksStat, len(observed), len(imputed))

		warn := false
		if !math.IsNaN(smd) && math.Abs(smd) > cfg.SMDThreshold {
			warn = true
		}
		if !math.IsNaN(varRatio) && (varRatio < cfg.VarRatioLow || varRatio > cfg.VarRatioHigh) {
			warn = true
		}
		if !math.IsNaN(ksP) && ksP < cfg.KSAlpha {
			warn = true
		}
		out = append(out, BiasRow{Column: name, SMD: smd, VarRatio: varRatio, KSStat: ksStat, KSPValue: ksP, Warn: warn})
	}
	return out
}

// ImputationBiasReport is the whole-table form: the was-imputed masks split
// each column's values into observed and imputed subsets.
func ImputationBiasReport(f *table.Frame, masks map[string][]bool, cfg BiasConfig) []BiasRow {
	samples := make(map[string]*Samples, len(masks))
	for name, mask := range masks {
		cs, ok := f.Schema().Col(name)
		if !ok || !cs.Type.Numeric() {
			continue
		}
		col, _ := f.Column(name)
		s := &Samples{}
		for r := 0; r < f.Rows() && r < len(mask); r++ {
			v, okv := f.Float64(r, name)
			if !okv {
				continue
			}
			if mask[r] {
				s.Imputed = append(s.Imputed, v)
			} else if !col.IsNull(r) {
				s.Observed = append(s.Observed, v)
			}
		}
		samples[name] = s
	}
	return ImputationBias(samples, cfg)
}

func meanVariance(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	return stat.MeanVariance(xs, nil)
}

// ksPValue is the asymptotic two-sample Kolmogorov-Smirnov p-value for
// statistic d with sample sizes n1 and n2.
func ksPValue(d float64, n1, n2 int) float64 {
	if n1 == 0 || n2 == 0 || math.IsNaN(d) {
		return math.NaN()
	}
	ne := float64(n1) * float64(n2) / float64(n1+n2)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * d
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for i := 1; i <= 100; i++ {
		term := sign * math.Exp(-2*lambda*lambda*float64(i)*float64(i))
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}
