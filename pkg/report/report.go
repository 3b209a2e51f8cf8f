// Package report defines the per-file QC report structure and the renderer
// contract the pipeline hands its results to.
package report

import (
	"github.com/openpheno/phenoqc/pkg/impute"
	"github.com/openpheno/phenoqc/pkg/quality"
	"github.com/openpheno/phenoqc/pkg/schema"
)

// ValidationSummary condenses the validator findings for one file.
type ValidationSummary struct {
	FormatValid   bool              `json:"format_valid"`
	Issues        []schema.IssueRow `json:"issues,omitempty"`
	DuplicateRows []int             `json:"duplicate_rows,omitempty"`
	ConflictRows  []int             `json:"conflict_rows,omitempty"`
	Anomalies     []schema.IssueRow `json:"anomalies,omitempty"`
	InvalidCells  int               `json:"invalid_cells"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// MissingSummary tracks missing-data volume before and after imputation.
type MissingSummary struct {
	TotalCells    int `json:"total_cells"`
	MissingBefore int `json:"missing_before"`
	Imputed       int `json:"imputed"`
	MissingAfter  int `json:"missing_after"`
}

// MappingStats is the cumulative term-mapping outcome for one ontology.
type MappingStats struct {
	Total      int     `json:"total"`
	Mapped     int     `json:"mapped"`
	SuccessPct float64 `json:"success_pct"`
}

// FileReport is everything the pipeline learned about one input file.
type FileReport struct {
	File       string                  `json:"file"`
	Status     string                  `json:"status"`
	Message    string                  `json:"message,omitempty"`
	Rows       int                     `json:"rows"`
	Chunks     int                     `json:"chunks"`
	OutputPath string                  `json:"output_path,omitempty"`
	Validation ValidationSummary       `json:"validation"`
	Missing    MissingSummary          `json:"missing_data"`
	Mapping    map[string]MappingStats `json:"mapping,omitempty"`
	Imputation []impute.Resolved       `json:"imputation,omitempty"`
	Quality    quality.Report          `json:"quality"`
}

// Renderer consumes the finished reports. The pipeline does not depend on
// anything a renderer produces.
type Renderer interface {
	Render(reports []FileReport) error
}
