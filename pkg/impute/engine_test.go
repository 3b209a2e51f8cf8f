package impute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpheno/phenoqc/pkg/table"
)

func numericFrame(cols map[string][]*float64) *table.Frame {
	var s table.Schema
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	// deterministic column order
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	nrows := 0
	for _, name := range names {
		s.Columns = append(s.Columns, table.ColumnSchema{Name: name, Type: table.KindFloat, Nullable: true})
		if len(cols[name]) > nrows {
			nrows = len(cols[name])
		}
	}
	f := table.NewFrame(s)
	for r := 0; r < nrows; r++ {
		f.AppendNullRow()
		for _, name := range names {
			if v := cols[name][r]; v != nil {
				_ = f.SetCell(r, name, *v)
			}
		}
	}
	return f
}

func fp(v float64) *float64 { return &v }

func TestMeanImputationExact(t *testing.T) {
	f := numericFrame(map[string][]*float64{"x": {fp(1), nil, fp(3)}})
	res := NewEngine(Config{Strategy: "mean"}, nil).Apply(f)

	v, ok := f.Float64(1, "x")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, []bool{false, true, false}, res.Masks["x"])
	assert.Equal(t, 1, res.ImputedCount())
}

func TestMedianAndModeImputation(t *testing.T) {
	f := numericFrame(map[string][]*float64{"x": {fp(1), fp(2), fp(10), nil}})
	NewEngine(Config{Strategy: "median"}, nil).Apply(f)
	v, _ := f.Float64(3, "x")
	assert.Equal(t, 2.0, v)

	s := table.Schema{Columns: []table.ColumnSchema{{Name: "label", Type: table.KindString, Nullable: true}}}
	g := table.NewFrame(s)
	for _, val := range []string{"a", "b", "b", ""} {
		g.AppendNullRow()
		if val != "" {
			_ = g.SetCell(g.Rows()-1, "label", val)
		}
	}
	NewEngine(Config{Strategy: "mode"}, nil).Apply(g)
	got, ok := g.Str("label").Get(3)
	require.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestUnknownStrategyLeavesColumnUntouched(t *testing.T) {
	f := numericFrame(map[string][]*float64{"x": {fp(1), nil}})
	res := NewEngine(Config{Strategy: "quantum"}, nil).Apply(f)

	col, _ := f.Column("x")
	assert.True(t, col.IsNull(1))
	require.Len(t, res.Resolved, 1)
	assert.Equal(t, "unknown_strategy", res.Resolved[0].Note)
	assert.Equal(t, "quantum", res.Resolved[0].Strategy)
}

func TestProtectedColumnsNeverImputed(t *testing.T) {
	f := numericFrame(map[string][]*float64{"x": {fp(1), nil}})
	NewEngine(Config{Strategy: "mean", ProtectedColumns: []string{"x"}}, nil).Apply(f)
	col, _ := f.Column("x")
	assert.True(t, col.IsNull(1))
}

func TestPerColumnOverride(t *testing.T) {
	f := numericFrame(map[string][]*float64{
		"a": {fp(1), nil, fp(5)},
		"b": {fp(1), nil, fp(5)},
	})
	cfg := Config{
		Strategy:  "mean",
		PerColumn: map[string]ColumnConfig{"b": {Strategy: "none"}},
	}
	NewEngine(cfg, nil).Apply(f)

	va, _ := f.Float64(1, "a")
	assert.Equal(t, 3.0, va)
	colB, _ := f.Column("b")
	assert.True(t, colB.IsNull(1), "per-column none leaves the column alone")
}

func TestSVDFallbackOnInsufficientRank(t *testing.T) {
	// 2 rows x 1 column: max feasible rank is 0, so svd degrades to mean
	f := numericFrame(map[string][]*float64{"x": {fp(4), nil}})
	res := NewEngine(Config{Strategy: "svd"}, nil).Apply(f)

	v, ok := f.Float64(1, "x")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	fallback := false
	for _, r := range res.Resolved {
		if r.Note == "fallback_mean" {
			fallback = true
		}
	}
	assert.True(t, fallback)
}

func TestKNNFillsFromNeighbors(t *testing.T) {
	// y tracks x exactly; x is complete, so it only enters the solver as a
	// predictor, and the two nearest neighbors of x=4 average to exactly 40
	f := numericFrame(map[string][]*float64{
		"x": {fp(1), fp(2), fp(3), fp(4), fp(5), fp(6)},
		"y": {fp(10), fp(20), fp(30), nil, fp(50), fp(60)},
	})
	cfg := Config{Strategy: "knn", Params: Params{NNeighbors: 2}}
	res := NewEngine(cfg, nil).Apply(f)

	v, ok := f.Float64(3, "y")
	require.True(t, ok)
	assert.InDelta(t, 40.0, v, 0.5, "a mean fill of y would give 34")
	assert.True(t, res.Masks["y"][3])
	colX, _ := f.Column("x")
	assert.Equal(t, 0, countNulls(colX))
	assert.Nil(t, res.Masks["x"], "complete predictor column is never written")
}

func TestMICEUsesLinearStructure(t *testing.T) {
	// x has no missing cells and is not grouped under mice, yet the
	// regression must still see it to recover y = 2x
	f := numericFrame(map[string][]*float64{
		"x": {fp(1), fp(2), fp(3), fp(4), fp(5)},
		"y": {fp(2), fp(4), fp(6), nil, fp(10)},
	})
	NewEngine(Config{Strategy: "mice"}, nil).Apply(f)
	v, ok := f.Float64(3, "y")
	require.True(t, ok)
	assert.InDelta(t, 8.0, v, 1e-6, "y = 2x should be recovered, not the mean 5.5")
}

func TestSVDUsesCompleteColumnAsPredictor(t *testing.T) {
	// rank-1 structure y = 2x with x complete; the low-rank completion
	// should land near 8 rather than the observed-y mean 5.5
	f := numericFrame(map[string][]*float64{
		"x": {fp(1), fp(2), fp(3), fp(4), fp(5)},
		"y": {fp(2), fp(4), fp(6), nil, fp(10)},
	})
	res := NewEngine(Config{Strategy: "svd", Params: Params{Rank: 1}}, nil).Apply(f)
	v, ok := f.Float64(3, "y")
	require.True(t, ok)
	assert.InDelta(t, 8.0, v, 1.0)
	for _, r := range res.Resolved {
		assert.NotEqual(t, "fallback_mean", r.Note)
	}
}

func TestIntColumnRoundsImputedValue(t *testing.T) {
	s := table.Schema{Columns: []table.ColumnSchema{{Name: "n", Type: table.KindInt, Nullable: true}}}
	f := table.NewFrame(s)
	for _, v := range []any{int64(1), nil, int64(2)} {
		f.AppendNullRow()
		if v != nil {
			_ = f.SetCell(f.Rows()-1, "n", v)
		}
	}
	NewEngine(Config{Strategy: "mean"}, nil).Apply(f)
	v, ok := f.Int("n").Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(2), v, "1.5 rounds to the nearest integer")
}

func TestTuningSelectsArgmin(t *testing.T) {
	cols := map[string][]*float64{"x": nil, "y": nil}
	for i := 0; i < 60; i++ {
		cols["x"] = append(cols["x"], fp(float64(i)))
		cols["y"] = append(cols["y"], fp(float64(2*i)))
	}
	cols["y"][7] = nil
	f := numericFrame(cols)

	cfg := Config{
		Strategy: "knn",
		Tuning: Tuning{
			Enable:       true,
			MaskFraction: 0.2,
			Scoring:      "MAE",
			RandomState:  42,
			Grid:         map[string][]int{"n_neighbors": {3, 5}},
		},
	}
	res := NewEngine(cfg, nil).Apply(f)

	var chosen int
	for _, r := range res.Resolved {
		if r.Note == "tuned" {
			chosen = r.Params["n_neighbors"].(int)
		}
	}
	assert.Contains(t, []int{3, 5}, chosen)
}

func TestTuningIsDeterministic(t *testing.T) {
	build := func() *table.Frame {
		cols := map[string][]*float64{"x": nil, "y": nil}
		for i := 0; i < 40; i++ {
			cols["x"] = append(cols["x"], fp(math.Sin(float64(i))))
			cols["y"] = append(cols["y"], fp(math.Cos(float64(i))))
		}
		cols["y"][3] = nil
		return numericFrame(cols)
	}
	cfg := Config{Strategy: "knn", Tuning: Tuning{Enable: true, RandomState: 7}}

	f1, f2 := build(), build()
	NewEngine(cfg, nil).Apply(f1)
	NewEngine(cfg, nil).Apply(f2)
	v1, _ := f1.Float64(3, "y")
	v2, _ := f2.Float64(3, "y")
	assert.Equal(t, v1, v2)
}
