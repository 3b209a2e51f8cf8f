package pipeline

import (
	"sort"

	"github.com/openpheno/phenoqc/pkg/quality"
	"github.com/openpheno/phenoqc/pkg/report"
)

// finalize turns the accumulated file state into the report: duplicate
// resolution over the full key set, score computation, and the quality
// diagnostics that need the whole file.
func (p *Pipeline) finalize(st *fileState, rep *report.FileReport, outPath string) {
	rep.Rows = st.rows
	rep.Chunks = st.chunks
	rep.OutputPath = outPath

	if st.rows == 0 {
		rep.Status = StatusWarnings
		rep.Message = "no data rows found"
		rep.Validation.FormatValid = true
		rep.Quality.Scores = quality.NewScores(100, 100, 100)
		return
	}

	duplicates := p.duplicateRows(st)

	rep.Validation = report.ValidationSummary{
		FormatValid:   st.formatValid,
		Issues:        st.issues,
		DuplicateRows: duplicates,
		ConflictRows:  dedupSorted(st.conflictRows),
		Anomalies:     st.anomalies,
		InvalidCells:  st.maskAcc.CountTrue(),
		Warnings:      st.warnings,
	}
	rep.Missing = report.MissingSummary{
		TotalCells:    st.totalCells,
		MissingBefore: st.missingBefore,
		Imputed:       st.imputedCells,
		MissingAfter:  st.missingAfter,
	}
	rep.Imputation = st.resolved

	rep.Mapping = make(map[string]report.MappingStats, len(st.mapStats))
	for ont, c := range st.mapStats {
		s := report.MappingStats{Total: c.total, Mapped: c.mapped}
		if c.total > 0 {
			s.SuccessPct = 100 * float64(c.mapped) / float64(c.total)
		}
		rep.Mapping[ont] = s
	}

	rep.Quality = p.qualityReport(st, duplicates)

	switch {
	case len(st.warnings) > 0 || st.degraded || !st.formatValid:
		rep.Status = StatusWarnings
		if rep.Message == "" {
			rep.Message = firstCause(st)
		}
	default:
		rep.Status = StatusProcessed
	}
}

// duplicateRows resolves cross-chunk duplicates: every row of every
// identifier key that occurred more than once in the file.
func (p *Pipeline) duplicateRows(st *fileState) []int {
	var out []int
	for _, rows := range st.keyRows {
		if len(rows) > 1 {
			out = append(out, rows...)
		}
	}
	sort.Ints(out)
	return out
}

func (p *Pipeline) qualityReport(st *fileState, duplicates []int) quality.Report {
	q := p.cfg.Quality

	trace := append([]quality.Issue(nil), st.traceNulls...)
	for _, row := range duplicates {
		trace = append(trace, quality.Issue{Row: row, Issue: quality.IssueDuplicateIdentifier})
	}
	sort.Slice(trace, func(i, j int) bool {
		if trace[i].Row != trace[j].Row {
			return trace[i].Row < trace[j].Row
		}
		return trace[i].Issue < trace[j].Issue
	})

	out := quality.Report{
		Scores:       p.scores(st),
		Accuracy:     st.accuracy,
		Redundancy:   st.redundancy.Finalize(),
		Traceability: trace,
		Timeliness:   st.timeliness,
	}
	if q.ClassDistribution.LabelColumn != "" {
		dist := st.classes.Finalize(q.ClassDistribution.WarnThreshold)
		out.Classes = &dist
	}
	if q.Bias.Enable {
		out.Bias = quality.ImputationBias(st.biasSamples, q.Bias)
	}
	if q.Stability.Enable && st.firstChunk != nil {
		out.Stability = quality.ImputationStability(st.firstChunk, p.cfg.Imputation, q.Stability)
	}
	return out
}

func (p *Pipeline) scores(st *fileState) quality.Scores {
	schemaPct := 100.0
	if st.rows > 0 {
		schemaPct = 100 * float64(st.rows-st.schemaBadRows) / float64(st.rows)
	}
	missingPct := 100.0
	if st.totalCells > 0 {
		missingPct = 100 * float64(st.totalCells-st.missingBefore) / float64(st.totalCells)
	}
	mappingPct := 0.0
	if len(st.mapStats) > 0 {
		for _, c := range st.mapStats {
			if c.total > 0 {
				mappingPct += 100 * float64(c.mapped) / float64(c.total)
			}
		}
		mappingPct /= float64(len(st.mapStats))
	}
	return quality.NewScores(schemaPct, missingPct, mappingPct)
}

func firstCause(st *fileState) string {
	if len(st.warnings) > 0 {
		return st.warnings[0]
	}
	if !st.formatValid {
		return "format validation found schema violations"
	}
	return "processed with warnings"
}

func dedupSorted(rows []int) []int {
	if len(rows) == 0 {
		return nil
	}
	sort.Ints(rows)
	out := rows[:1]
	for _, r := range rows[1:] {
		if r != out[len(out)-1] {
			out = append(out, r)
		}
	}
	return out
}
