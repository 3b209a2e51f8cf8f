package quality

// Scores are the headline percentages of a processed file, each in [0,100].
type Scores struct {
	SchemaValidity   float64 `json:"schema_validity"`
	MissingRetention float64 `json:"missing_retention"`
	MappingSuccess   float64 `json:"mapping_success"`
	Overall          float64 `json:"overall"`
}

// NewScores clamps each component and sets the aggregate, the plain mean of
// the three components.
func NewScores(schemaPct, missingPct, mappingPct float64) Scores {
	s := Scores{
		SchemaValidity:   clampPct(schemaPct),
		MissingRetention: clampPct(missingPct),
		MappingSuccess:   clampPct(mappingPct),
	}
	s.Overall = (s.SchemaValidity + s.MissingRetention + s.MappingSuccess) / 3
	return s
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Report bundles every metric's findings for one file.
type Report struct {
	Scores       Scores             `json:"scores"`
	Accuracy     []AccuracyIssue    `json:"accuracy,omitempty"`
	Redundancy   []RedundancyPair   `json:"redundancy,omitempty"`
	Traceability []Issue            `json:"traceability,omitempty"`
	Timeliness   []Issue            `json:"timeliness,omitempty"`
	Classes      *ClassDistribution `json:"class_distribution,omitempty"`
	Bias         []BiasRow          `json:"imputation_bias,omitempty"`
	Stability    []StabilityRow     `json:"imputation_stability,omitempty"`
}
