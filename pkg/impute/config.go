// Package impute fills missing values using per-column configurable
// strategies, tracking exactly which cells were imputed.
package impute

import "strings"

// Strategy enumerates the supported imputation strategies.
type Strategy int

const (
	StrategyUnknown Strategy = iota
	StrategyNone
	StrategyMean
	StrategyMedian
	StrategyMode
	StrategyKNN
	StrategyMICE
	StrategySVD
)

var strategyNames = map[string]Strategy{
	"none":   StrategyNone,
	"mean":   StrategyMean,
	"median": StrategyMedian,
	"mode":   StrategyMode,
	"knn":    StrategyKNN,
	"mice":   StrategyMICE,
	"svd":    StrategySVD,
}

func ParseStrategy(s string) (Strategy, bool) {
	st, ok := strategyNames[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s Strategy) String() string {
	for name, st := range strategyNames {
		if st == s {
			return name
		}
	}
	return "unknown"
}

// Params carries strategy parameters; zero values select defaults.
type Params struct {
	NNeighbors  int   `yaml:"n_neighbors" json:"n_neighbors"`
	MaxIter     int   `yaml:"max_iter" json:"max_iter"`
	Rank        int   `yaml:"rank" json:"rank"`
	RandomState int64 `yaml:"random_state" json:"random_state"`
}

const (
	defaultNeighbors = 5
	defaultMaxIter   = 10
)

// Tuning configures masked-cell hyperparameter search. Only knn honors it;
// other strategies report it as unsupported rather than ignoring it.
type Tuning struct {
	Enable       bool             `yaml:"enable" json:"enable"`
	MaskFraction float64          `yaml:"mask_fraction" json:"mask_fraction"`
	Scoring      string           `yaml:"scoring" json:"scoring"` // MAE (default) or RMSE
	MaxCells     int              `yaml:"max_cells" json:"max_cells"`
	RandomState  int64            `yaml:"random_state" json:"random_state"`
	Grid         map[string][]int `yaml:"grid" json:"grid"`
}

// ColumnConfig overrides the global strategy for one column.
type ColumnConfig struct {
	Strategy string `yaml:"strategy" json:"strategy"`
	Params   Params `yaml:"params" json:"params"`
}

// Config is the full imputation configuration for a run.
type Config struct {
	Strategy         string                  `yaml:"strategy" json:"strategy"`
	Params           Params                  `yaml:"params" json:"params"`
	PerColumn        map[string]ColumnConfig `yaml:"per_column" json:"per_column"`
	Tuning           Tuning                  `yaml:"tuning" json:"tuning"`
	ProtectedColumns []string                `yaml:"protected_columns" json:"protected_columns"`
}

func (c Config) IsProtected(col string) bool {
	for _, p := range c.ProtectedColumns {
		if p == col {
			return true
		}
	}
	return false
}

// Effective is the resolved per-column configuration: the per-column
// override when present, else the global default.
type Effective struct {
	Column      string
	Strategy    Strategy
	RawStrategy string
	Params      Params
}

// EffectiveFor centralizes per-column config resolution; it is the only
// place strategy strings are interpreted.
func (c Config) EffectiveFor(column string) Effective {
	raw := c.Strategy
	params := c.Params
	if cc, ok := c.PerColumn[column]; ok {
		if cc.Strategy != "" {
			raw = cc.Strategy
		}
		params = cc.Params
	}
	if raw == "" {
		raw = "mean"
	}
	st, ok := ParseStrategy(raw)
	if !ok {
		st = StrategyUnknown
	}
	if params.NNeighbors <= 0 {
		params.NNeighbors = defaultNeighbors
	}
	if params.MaxIter <= 0 {
		params.MaxIter = defaultMaxIter
	}
	return Effective{Column: column, Strategy: st, RawStrategy: raw, Params: params}
}
