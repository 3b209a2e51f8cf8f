// Package quality scores processed tables on accuracy, redundancy,
// traceability, timeliness, class balance, and imputation bias.
package quality

// Config collects the thresholds for every quality metric. Zero values
// select the documented defaults.
type Config struct {
	RedundancyThreshold float64         `yaml:"redundancy_threshold" json:"redundancy_threshold"`
	SourceColumn        string          `yaml:"source_column" json:"source_column"`
	DateColumn          string          `yaml:"date_column" json:"date_column"`
	MaxLagDays          int             `yaml:"max_lag_days" json:"max_lag_days"`
	ClassDistribution   ClassConfig     `yaml:"class_distribution" json:"class_distribution"`
	Bias                BiasConfig      `yaml:"imputation_bias" json:"imputation_bias"`
	Stability           StabilityConfig `yaml:"imputation_stability" json:"imputation_stability"`
}

type ClassConfig struct {
	LabelColumn   string  `yaml:"label_column" json:"label_column"`
	WarnThreshold float64 `yaml:"warn_threshold" json:"warn_threshold"`
}

type BiasConfig struct {
	Enable       bool    `yaml:"enable" json:"enable"`
	SMDThreshold float64 `yaml:"smd_threshold" json:"smd_threshold"`
	VarRatioLow  float64 `yaml:"var_ratio_low" json:"var_ratio_low"`
	VarRatioHigh float64 `yaml:"var_ratio_high" json:"var_ratio_high"`
	KSAlpha      float64 `yaml:"ks_alpha" json:"ks_alpha"`
}

type StabilityConfig struct {
	Enable       bool    `yaml:"enable" json:"enable"`
	Repeats      int     `yaml:"repeats" json:"repeats"`
	MaskFraction float64 `yaml:"mask_fraction" json:"mask_fraction"`
	Scoring      string  `yaml:"scoring" json:"scoring"`
	RandomState  int64   `yaml:"random_state" json:"random_state"`
}

const (
	defaultRedundancyThreshold = 0.98
	defaultClassWarnThreshold  = 0.10
	defaultSMDThreshold        = 0.10
	defaultVarRatioLow         = 0.5
	defaultVarRatioHigh        = 2.0
	defaultKSAlpha             = 0.05
	defaultStabilityRepeats    = 5
	defaultStabilityFraction   = 0.1
)

func (c BiasConfig) withDefaults() BiasConfig {
	if c.SMDThreshold <= 0 {
		c.SMDThreshold = defaultSMDThreshold
	}
	if c.VarRatioLow <= 0 {
		c.VarRatioLow = defaultVarRatioLow
	}
	if c.VarRatioHigh <= 0 {
		c.VarRatioHigh = defaultVarRatioHigh
	}
	if c.KSAlpha <= 0 {
		c.KSAlpha = defaultKSAlpha
	}
	return c
}

func (c StabilityConfig) withDefaults() StabilityConfig {
	if c.Repeats <= 0 {
		c.Repeats = defaultStabilityRepeats
	}
	if c.MaskFraction <= 0 || c.MaskFraction >= 1 {
		c.MaskFraction = defaultStabilityFraction
	}
	if c.Scoring == "" {
		c.Scoring = "MAE"
	}
	return c
}
