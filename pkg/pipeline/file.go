// Package pipeline orchestrates the per-file QC run: chunked validation,
// imputation, ontology mapping, quality scoring, and incremental output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openpheno/phenoqc/pkg/config"
	"github.com/openpheno/phenoqc/pkg/impute"
	"github.com/openpheno/phenoqc/pkg/ontology"
	"github.com/openpheno/phenoqc/pkg/quality"
	"github.com/openpheno/phenoqc/pkg/report"
	"github.com/openpheno/phenoqc/pkg/schema"
	"github.com/openpheno/phenoqc/pkg/table"
)

// File statuses. Every file task ends in exactly one of these.
const (
	StatusProcessed = "Processed"
	StatusWarnings  = "ProcessedWithWarnings"
	StatusError     = "Error"
)

const maxBiasSamples = 10000

// Pipeline holds the shared, immutable pieces of a batch run. File tasks
// share no mutable state; everything per-file lives in fileState.
type Pipeline struct {
	cfg      *config.Config
	doc      *schema.Document
	mapper   *ontology.Mapper
	custom   map[string]string
	refs     map[string]map[string]struct{}
	setupErr error
	outDir   string
	log      *logrus.Entry
	now      func() time.Time
}

// New prepares a pipeline: ontology sources and reference data are loaded
// once, up front. A load failure is remembered rather than returned, because
// it fails each file task individually instead of the whole batch.
func New(ctx context.Context, cfg *config.Config, doc *schema.Document, outDir string, log *logrus.Entry) *Pipeline {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pipeline{cfg: cfg, doc: doc, outDir: outDir, log: log, now: time.Now}

	custom, err := config.LoadCustomMappings(cfg.CustomMappingsFile)
	if err != nil {
		p.setupErr = fmt.Errorf("%w: %v", ontology.ErrOntologyLoad, err)
		return p
	}
	p.custom = custom

	p.refs, err = loadReferences(cfg.ReferenceDataFile, cfg.ReferenceColumns, cfg.ChunkSize)
	if err != nil {
		p.setupErr = fmt.Errorf("reference data: %w", err)
		return p
	}

	if len(cfg.Ontologies) > 0 {
		p.mapper, err = ontology.NewMapper(ctx, ontology.Options{
			Sources:         cfg.Ontologies,
			Defaults:        cfg.DefaultOntologies,
			FuzzyThreshold:  cfg.FuzzyThreshold,
			CacheDir:        cfg.CacheDir,
			CacheExpiryDays: cfg.CacheExpiryDays,
		}, log)
		if err != nil {
			p.setupErr = err
		}
	}
	return p
}

// loadReferences streams the reference dataset once, collecting the allowed
// values of each reference-checked column.
func loadReferences(path string, cols []string, chunkSize int) (map[string]map[string]struct{}, error) {
	if path == "" || len(cols) == 0 {
		return nil, nil
	}
	src, err := OpenSource(path, chunkSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	refs := make(map[string]map[string]struct{}, len(cols))
	for _, c := range cols {
		refs[c] = make(map[string]struct{})
	}
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			col, ok := chunk.Column(c)
			if !ok {
				continue
			}
			for r := 0; r < chunk.Rows(); r++ {
				if col.IsNull(r) {
					continue
				}
				refs[c][chunk.CellString(r, c)] = struct{}{}
			}
		}
	}
	return refs, nil
}

type mapCounter struct {
	total  int
	mapped int
}

// fileState is the accumulator threaded through every chunk of one file.
type fileState struct {
	validator *schema.Validator
	engine    *impute.Engine
	dataCols  []string

	rows, chunks  int
	totalCells    int
	missingBefore int
	missingAfter  int
	imputedCells  int
	schemaBadRows int
	formatValid   bool
	degraded      bool
	warnings      []string
	issues        []schema.IssueRow
	anomalies     []schema.IssueRow
	conflictRows  []int

	keyRows    map[string][]int
	maskAcc    *table.MaskAccumulator
	mapStats   map[string]*mapCounter
	classes    *quality.ClassCounter
	redundancy *quality.RedundancyAccumulator

	accuracy   []quality.AccuracyIssue
	traceNulls []quality.Issue
	timeliness []quality.Issue

	biasSamples map[string]*quality.Samples
	resolved    []impute.Resolved
	resolvedSet map[string]bool

	firstChunk *table.Frame // pre-imputation copy, for the stability diagnostic
}

func (p *Pipeline) newFileState() *fileState {
	return &fileState{
		validator: schema.NewValidator(p.doc, p.cfg.UniqueIdentifiers).
			WithAnomalyDetection(p.cfg.DetectAnomalies).
			WithReferences(p.refs),
		engine:      impute.NewEngine(p.cfg.Imputation, p.log),
		formatValid: true,
		keyRows:     make(map[string][]int),
		maskAcc:     table.NewMaskAccumulator(),
		mapStats:    make(map[string]*mapCounter),
		classes:     quality.NewClassCounter(),
		redundancy:  quality.NewRedundancyAccumulator(p.cfg.Quality.RedundancyThreshold),
		biasSamples: make(map[string]*quality.Samples),
		resolvedSet: make(map[string]bool),
	}
}

// ProcessFile runs the whole per-file state machine and always returns a
// report; errors are folded into the report status.
func (p *Pipeline) ProcessFile(path string) report.FileReport {
	log := p.log.WithField("file", path)
	rep := report.FileReport{File: path, Status: StatusProcessed}

	if p.setupErr != nil {
		rep.Status = StatusError
		rep.Message = p.setupErr.Error()
		log.WithError(p.setupErr).Error("pipeline setup failure fails the file task")
		return rep
	}

	src, err := OpenSource(path, p.cfg.ChunkSize)
	if err != nil {
		rep.Status = StatusWarnings
		rep.Message = fmt.Sprintf("unreadable input: %v", err)
		log.WithError(err).Warn("file skipped as unreadable")
		return rep
	}
	defer func() { _ = src.Close() }()

	outPath := OutputPath(p.outDir, path, p.cfg.OutputFormat)
	sink, err := NewSink(outPath, p.cfg.OutputFormat)
	if err != nil {
		rep.Status = StatusError
		rep.Message = err.Error()
		return rep
	}

	st := p.newFileState()
	for _, cs := range src.Schema().Columns {
		st.dataCols = append(st.dataCols, cs.Name)
	}

	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			st.warnings = append(st.warnings, fmt.Sprintf("chunk read failed: %v", err))
			log.WithError(err).Warn("stopping after chunk read failure")
			break
		}
		if err := p.processChunk(st, chunk, sink, log); err != nil {
			_ = sink.Close()
			rep.Status = StatusError
			rep.Message = err.Error()
			log.WithError(err).Error("file task failed")
			return rep
		}
	}
	if err := sink.Close(); err != nil {
		rep.Status = StatusError
		rep.Message = fmt.Sprintf("output close failed: %v", err)
		return rep
	}

	p.finalize(st, &rep, outPath)
	log.WithFields(logrus.Fields{
		"status": rep.Status,
		"rows":   rep.Rows,
		"chunks": rep.Chunks,
		"score":  rep.Quality.Scores.Overall,
	}).Info("file processed")
	return rep
}

// processChunk advances the state machine by one chunk: validate, impute,
// map, measure, write.
func (p *Pipeline) processChunk(st *fileState, chunk *table.Frame, sink ChunkSink, log *logrus.Entry) error {
	st.chunks++
	st.rows += chunk.Rows()

	vres := st.validator.ValidateChunk(chunk)
	p.absorbValidation(st, chunk, vres)

	p.countMissing(st, chunk)
	if st.firstChunk == nil {
		st.firstChunk = cloneFrame(chunk)
	}

	ires := st.engine.Apply(chunk)
	st.imputedCells += ires.ImputedCount()
	p.absorbImputation(st, chunk, ires)

	p.flagMissing(st, chunk)
	if err := p.mapChunk(st, chunk, log); err != nil {
		return err
	}
	p.measureChunk(st, chunk)
	if p.cfg.InvalidFlagColumns {
		attachInvalidFlags(p.doc, chunk, vres.Mask)
	}

	if err := sink.Write(chunk); err != nil {
		return fmt.Errorf("output write failed: %w", err)
	}
	return nil
}

func (p *Pipeline) absorbValidation(st *fileState, chunk *table.Frame, vres *schema.Result) {
	if !vres.FormatValid {
		st.formatValid = false
	}
	if vres.Degraded {
		st.degraded = true
	}
	st.warnings = append(st.warnings, vres.Warnings...)
	st.issues = append(st.issues, vres.IntegrityRows...)
	st.anomalies = append(st.anomalies, vres.AnomalyRows...)
	st.conflictRows = append(st.conflictRows, vres.ConflictRows...)
	st.maskAcc.Append(vres.Mask)

	flag := chunk.Bool(schema.SchemaViolationColumn)
	for r := 0; r < chunk.Rows(); r++ {
		if v, ok := flag.Get(r); ok && v {
			st.schemaBadRows++
		}
	}

	ids := p.cfg.UniqueIdentifiers
	for r := 0; r < chunk.Rows(); r++ {
		if key, ok := schema.KeyOf(chunk, r, ids); ok {
			st.keyRows[key] = append(st.keyRows[key], chunk.RowOffset()+r)
		}
	}
}

func (p *Pipeline) countMissing(st *fileState, chunk *table.Frame) {
	for _, name := range st.dataCols {
		col, ok := chunk.Column(name)
		if !ok {
			continue
		}
		for r := 0; r < chunk.Rows(); r++ {
			st.totalCells++
			if col.IsNull(r) {
				st.missingBefore++
			}
		}
	}
}

const MissingDataColumn = "MissingDataFlag"

// flagMissing marks rows that still have a missing data cell after
// imputation, and tallies the residual missing cells.
func (p *Pipeline) flagMissing(st *fileState, chunk *table.Frame) {
	if !chunk.HasColumn(MissingDataColumn) {
		_ = chunk.AddColumn(table.ColumnSchema{Name: MissingDataColumn, Type: table.KindBool, Nullable: true})
	}
	flag := chunk.Bool(MissingDataColumn)
	for r := 0; r < chunk.Rows(); r++ {
		has := false
		for _, name := range st.dataCols {
			col, ok := chunk.Column(name)
			if !ok {
				continue
			}
			if col.IsNull(r) {
				has = true
				st.missingAfter++
			}
		}
		flag.Set(r, has)
	}
}

func (p *Pipeline) absorbImputation(st *fileState, chunk *table.Frame, ires *impute.Result) {
	for _, r := range ires.Resolved {
		key := r.Column + "|" + r.Strategy + "|" + r.Note
		if !st.resolvedSet[key] {
			st.resolvedSet[key] = true
			st.resolved = append(st.resolved, r)
		}
	}
	for name, mask := range ires.Masks {
		cs, ok := chunk.Schema().Col(name)
		if !ok || !cs.Type.Numeric() {
			continue
		}
		s := st.biasSamples[name]
		if s == nil {
			s = &quality.Samples{}
			st.biasSamples[name] = s
		}
		col, _ := chunk.Column(name)
		for r := 0; r < chunk.Rows() && r < len(mask); r++ {
			v, okv := chunk.Float64(r, name)
			if !okv {
				continue
			}
			switch {
			case mask[r] && len(s.Imputed) < maxBiasSamples:
				s.Imputed = append(s.Imputed, v)
			case !mask[r] && !col.IsNull(r) && len(s.Observed) < maxBiasSamples:
				s.Observed = append(s.Observed, v)
			}
		}
	}
}

// mapChunk resolves the configured phenotype columns against the loaded
// ontologies and attaches one identifier column per target.
func (p *Pipeline) mapChunk(st *fileState, chunk *table.Frame, log *logrus.Entry) error {
	if p.mapper == nil || len(p.cfg.PhenotypeColumns) == 0 {
		return nil
	}
	targets := p.cfg.DefaultOntologies
	if len(targets) == 0 {
		targets = p.mapper.Supported()
	}
	for _, ont := range targets {
		if st.mapStats[ont] == nil {
			st.mapStats[ont] = &mapCounter{}
		}
	}
	for _, phenoCol := range p.cfg.PhenotypeColumns {
		if !chunk.HasColumn(phenoCol) {
			w := fmt.Sprintf("phenotype column %q missing from chunk; mapping skipped", phenoCol)
			st.warnings = append(st.warnings, w)
			st.degraded = true
			log.Warn(w)
			continue
		}
		terms := make([]string, 0, chunk.Rows())
		col, _ := chunk.Column(phenoCol)
		for r := 0; r < chunk.Rows(); r++ {
			if col.IsNull(r) {
				terms = append(terms, "")
			} else {
				terms = append(terms, chunk.CellString(r, phenoCol))
			}
		}
		mappings := p.mapper.MapTerms(terms, targets, p.custom)
		for _, ont := range targets {
			name := mappedColumnName(p.cfg.PhenotypeColumns, phenoCol, ont)
			if !chunk.HasColumn(name) {
				_ = chunk.AddColumn(table.ColumnSchema{Name: name, Type: table.KindString, Nullable: true})
			}
			out := chunk.Str(name)
			stats := st.mapStats[ont]
			stats.total += chunk.Rows()
			for r, term := range terms {
				id := ""
				if tm, ok := mappings[term]; ok {
					id = tm[ont]
				}
				if id == "" {
					continue // freshly added columns are already null
				}
				out.Set(r, id)
				stats.mapped++
			}
		}
	}
	return nil
}

// mappedColumnName keeps the single-column layout ("HPO_ID") and prefixes
// the source column only when several phenotype columns are configured.
func mappedColumnName(all []string, col, ont string) string {
	if len(all) <= 1 {
		return ont + "_ID"
	}
	return col + "_" + ont + "_ID"
}

func (p *Pipeline) measureChunk(st *fileState, chunk *table.Frame) {
	q := p.cfg.Quality
	st.accuracy = append(st.accuracy, quality.CheckAccuracy(chunk, p.doc)...)
	st.traceNulls = append(st.traceNulls, quality.CheckTraceability(chunk, p.cfg.UniqueIdentifiers, q.SourceColumn)...)
	st.timeliness = append(st.timeliness, quality.CheckTimeliness(chunk, q.DateColumn, q.MaxLagDays, p.now())...)
	if q.ClassDistribution.LabelColumn != "" {
		st.classes.Update(chunk, q.ClassDistribution.LabelColumn)
	}
	st.redundancy.Add(chunk)
}

// attachInvalidFlags adds one boolean column per schema property carrying
// the per-cell invalid mask.
func attachInvalidFlags(doc *schema.Document, chunk *table.Frame, mask *table.Mask) {
	names := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		if chunk.HasColumn(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		flagName := name + "_InvalidFlag"
		if !chunk.HasColumn(flagName) {
			_ = chunk.AddColumn(table.ColumnSchema{Name: flagName, Type: table.KindBool, Nullable: true})
		}
		flag := chunk.Bool(flagName)
		for r := 0; r < chunk.Rows(); r++ {
			flag.Set(r, mask.Get(r, name))
		}
	}
}

func cloneFrame(f *table.Frame) *table.Frame {
	out := table.NewFrame(f.Schema())
	for r := 0; r < f.Rows(); r++ {
		out.CopyRow(f, r)
	}
	return out
}
