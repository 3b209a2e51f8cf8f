package schema

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/openpheno/phenoqc/pkg/table"
)

// SchemaViolationColumn is the boolean output column marking rows that
// failed record-level validation.
const SchemaViolationColumn = "SchemaViolationFlag"

// IssueRow locates one validation finding. Row is file-global.
type IssueRow struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Result aggregates everything the validator found in one chunk.
type Result struct {
	FormatValid   bool
	IntegrityRows []IssueRow
	DuplicateRows []int // file-global indices of rows duplicated within the chunk
	ConflictRows  []int
	AnomalyRows   []IssueRow
	Mask          *table.Mask
	Degraded      bool
	Warnings      []string
}

// Validator checks chunks against a schema document and a configured
// unique-identifier column set. It is stateless across chunks; cross-chunk
// duplicate tracking belongs to the pipeline accumulator.
type Validator struct {
	doc         *Document
	identifiers []string
	anomalies   bool
	refs        map[string]map[string]struct{}
}

func NewValidator(doc *Document, identifiers []string) *Validator {
	return &Validator{doc: doc, identifiers: identifiers, anomalies: true}
}

// WithAnomalyDetection toggles the z-score outlier pass, on by default.
func (v *Validator) WithAnomalyDetection(on bool) *Validator {
	v.anomalies = on
	return v
}

// WithReferences installs per-column allowed value sets for referential
// checks. A nil or empty map disables the pass.
func (v *Validator) WithReferences(refs map[string]map[string]struct{}) *Validator {
	v.refs = refs
	return v
}

func (v *Validator) Identifiers() []string { return v.identifiers }

// effectiveColumns applies the degraded-schema policy: identifier or
// required columns absent from the chunk are excluded for this chunk only,
// with a warning, instead of failing the whole file.
func (v *Validator) effectiveColumns(f *table.Frame) (ids, required []string, warnings []string) {
	for _, id := range v.identifiers {
		if f.HasColumn(id) {
			ids = append(ids, id)
		} else {
			warnings = append(warnings, fmt.Sprintf("identifier column %q missing from chunk; excluded from duplicate detection", id))
		}
	}
	for _, r := range v.doc.Required {
		if f.HasColumn(r) {
			required = append(required, r)
		} else {
			warnings = append(warnings, fmt.Sprintf("required column %q missing from chunk; requirement relaxed", r))
		}
	}
	return ids, required, warnings
}

// ValidateChunk runs every check over one chunk and attaches the
// SchemaViolationFlag column. A record-level failure never stops the scan.
func (v *Validator) ValidateChunk(f *table.Frame) *Result {
	ids, required, warnings := v.effectiveColumns(f)
	res := &Result{
		FormatValid: true,
		Mask:        table.NewMask(f.Rows()),
		Degraded:    len(warnings) > 0,
		Warnings:    warnings,
	}

	v.validateFormat(f, required, res)
	v.validateCells(f, res.Mask)

	dups := v.IdentifyDuplicates(f, ids)
	res.DuplicateRows = dups
	res.ConflictRows = v.DetectConflicts(f, ids, dups)
	res.IntegrityRows = append(res.IntegrityRows, v.VerifyIntegrity(f, required)...)
	res.IntegrityRows = append(res.IntegrityRows, v.CheckReferences(f)...)
	if v.anomalies {
		res.AnomalyRows = v.DetectAnomalies(f)
	}
	return res
}

// CheckReferences reports rows whose value in a reference-checked column
// does not occur in the reference dataset. Columns absent from the chunk
// and null cells are skipped; nullness is reported by the required-field
// checks instead.
func (v *Validator) CheckReferences(f *table.Frame) []IssueRow {
	if len(v.refs) == 0 {
		return nil
	}
	names := make([]string, 0, len(v.refs))
	for name := range v.refs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []IssueRow
	for _, name := range names {
		if !f.HasColumn(name) {
			continue
		}
		allowed := v.refs[name]
		col, _ := f.Column(name)
		for r := 0; r < f.Rows(); r++ {
			if col.IsNull(r) {
				continue
			}
			val := f.CellString(r, name)
			if _, ok := allowed[val]; !ok {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Value: val,
					Reason: "value not found in reference data"})
			}
		}
	}
	return out
}

// validateFormat checks each record independently against the schema and
// marks failing rows in the SchemaViolationFlag column.
func (v *Validator) validateFormat(f *table.Frame, required []string, res *Result) {
	if !f.HasColumn(SchemaViolationColumn) {
		_ = f.AddColumn(table.ColumnSchema{Name: SchemaViolationColumn, Type: table.KindBool, Nullable: true})
	}
	flag := f.Bool(SchemaViolationColumn)
	for r := 0; r < f.Rows(); r++ {
		reason := v.recordIssue(f, r, required)
		flag.Set(r, reason != "")
		if reason != "" {
			res.FormatValid = false
			res.IntegrityRows = append(res.IntegrityRows, IssueRow{Row: f.RowOffset() + r, Reason: reason})
		}
	}
}

func (v *Validator) recordIssue(f *table.Frame, row int, required []string) string {
	for _, name := range required {
		col, _ := f.Column(name)
		if col.IsNull(row) {
			return fmt.Sprintf("required field %q is null", name)
		}
	}
	for name, prop := range v.doc.Properties {
		if !f.HasColumn(name) {
			continue
		}
		col, _ := f.Column(name)
		if col.IsNull(row) {
			continue
		}
		if !typeMatches(f, row, name, prop.Type) {
			return fmt.Sprintf("field %q is not a valid %s", name, prop.Type)
		}
	}
	return ""
}

// validateCells marks individual cells violating type, bounds, or format.
func (v *Validator) validateCells(f *table.Frame, mask *table.Mask) {
	names := sortedProps(v.doc)
	for _, name := range names {
		prop := v.doc.Properties[name]
		if !f.HasColumn(name) {
			continue
		}
		col, _ := f.Column(name)
		for r := 0; r < f.Rows(); r++ {
			if col.IsNull(r) {
				continue
			}
			if !typeMatches(f, r, name, prop.Type) {
				mask.Set(r, name)
				continue
			}
			if prop.Minimum != nil || prop.Maximum != nil {
				x, ok := f.Float64(r, name)
				if !ok {
					mask.Set(r, name)
					continue
				}
				if (prop.Minimum != nil && x < *prop.Minimum) || (prop.Maximum != nil && x > *prop.Maximum) {
					mask.Set(r, name)
					continue
				}
			}
			if prop.Format != "" && !formatMatches(f.CellString(r, name), prop.Format) {
				mask.Set(r, name)
			}
		}
	}
}

// IdentifyDuplicates returns file-global indices of rows whose identifier
// key repeats within the chunk. Rows with a null identifier cell do not key.
func (v *Validator) IdentifyDuplicates(f *table.Frame, ids []string) []int {
	if len(ids) == 0 {
		return nil
	}
	groups := make(map[string][]int)
	for r := 0; r < f.Rows(); r++ {
		key, ok := KeyOf(f, r, ids)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], r)
	}
	var out []int
	for _, rows := range groups {
		if len(rows) > 1 {
			for _, r := range rows {
				out = append(out, f.RowOffset()+r)
			}
		}
	}
	sort.Ints(out)
	return out
}

// DetectConflicts returns rows from duplicate groups that disagree on any
// non-identifier column.
func (v *Validator) DetectConflicts(f *table.Frame, ids []string, duplicates []int) []int {
	if len(duplicates) == 0 || len(ids) == 0 {
		return nil
	}
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	groups := make(map[string][]int)
	for _, global := range duplicates {
		r := global - f.RowOffset()
		if r < 0 || r >= f.Rows() {
			continue
		}
		key, ok := KeyOf(f, r, ids)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], r)
	}
	var out []int
	for _, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		conflict := false
		for _, cs := range f.Schema().Columns {
			if _, isID := idSet[cs.Name]; isID {
				continue
			}
			first := f.CellString(rows[0], cs.Name)
			for _, r := range rows[1:] {
				if f.CellString(r, cs.Name) != first {
					conflict = true
					break
				}
			}
			if conflict {
				break
			}
		}
		if conflict {
			for _, r := range rows {
				out = append(out, f.RowOffset()+r)
			}
		}
	}
	sort.Ints(out)
	return out
}

// VerifyIntegrity reports required-field nullness, type mismatches, and
// numeric bound violations. Values are coerced to numeric before bound
// checks; a failed coercion is itself reported.
func (v *Validator) VerifyIntegrity(f *table.Frame, required []string) []IssueRow {
	var out []IssueRow
	for _, name := range required {
		col, _ := f.Column(name)
		for r := 0; r < f.Rows(); r++ {
			if col.IsNull(r) {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Reason: "missing required value"})
			}
		}
	}
	for _, name := range sortedProps(v.doc) {
		prop := v.doc.Properties[name]
		if !f.HasColumn(name) {
			continue
		}
		col, _ := f.Column(name)
		for r := 0; r < f.Rows(); r++ {
			if col.IsNull(r) {
				continue
			}
			if !typeMatches(f, r, name, prop.Type) {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Value: f.CellString(r, name),
					Reason: fmt.Sprintf("expected %s", prop.Type)})
				continue
			}
			if prop.Minimum == nil && prop.Maximum == nil {
				continue
			}
			x, ok := f.Float64(r, name)
			if !ok {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Value: f.CellString(r, name),
					Reason: "not coercible to numeric"})
				continue
			}
			if prop.Minimum != nil && x < *prop.Minimum {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Value: f.CellString(r, name),
					Reason: fmt.Sprintf("below minimum %v", *prop.Minimum)})
			} else if prop.Maximum != nil && x > *prop.Maximum {
				out = append(out, IssueRow{Row: f.RowOffset() + r, Column: name, Value: f.CellString(r, name),
					Reason: fmt.Sprintf("above maximum %v", *prop.Maximum)})
			}
		}
	}
	return out
}

// DetectAnomalies flags numeric cells more than three standard deviations
// from their column mean. Diagnostic only; anomalies never fail a file.
func (v *Validator) DetectAnomalies(f *table.Frame) []IssueRow {
	var out []IssueRow
	for _, cs := range f.Schema().Columns {
		if !cs.Type.Numeric() {
			continue
		}
		vals := make([]float64, 0, f.Rows())
		rows := make([]int, 0, f.Rows())
		for r := 0; r < f.Rows(); r++ {
			if x, ok := f.Float64(r, cs.Name); ok {
				vals = append(vals, x)
				rows = append(rows, r)
			}
		}
		if len(vals) < 2 {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if std == 0 || math.IsNaN(std) {
			continue
		}
		for i, x := range vals {
			if math.Abs((x-mean)/std) > 3 {
				out = append(out, IssueRow{Row: f.RowOffset() + rows[i], Column: cs.Name,
					Value: f.CellString(rows[i], cs.Name), Reason: "z-score above 3"})
			}
		}
	}
	return out
}

// KeyOf builds the unique-identifier key for one row. ok is false when any
// identifier cell is null, in which case the row cannot key a group.
func KeyOf(f *table.Frame, row int, ids []string) (string, bool) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		col, ok := f.Column(id)
		if !ok || col.IsNull(row) {
			return "", false
		}
		parts[i] = f.CellString(row, id)
	}
	return strings.Join(parts, "\x1f"), true
}

func sortedProps(doc *Document) []string {
	names := make([]string, 0, len(doc.Properties))
	for n := range doc.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	dateRE       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	emailRE      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uuidRE       = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	identifierRE = regexp.MustCompile(`^[A-Z]+:\d+$`)
)

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses the date formats accepted across the pipeline.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func typeMatches(f *table.Frame, row int, name, declared string) bool {
	switch declared {
	case "", "string":
		return true
	case "number":
		_, ok := f.Float64(row, name)
		return ok
	case "integer":
		x, ok := f.Float64(row, name)
		return ok && x == math.Trunc(x)
	case "boolean":
		v, _ := f.Value(row, name)
		if _, ok := v.(bool); ok {
			return true
		}
		s := strings.ToLower(f.CellString(row, name))
		return s == "true" || s == "false"
	case "date":
		return dateRE.MatchString(f.CellString(row, name))
	case "date-time":
		_, ok := ParseDate(f.CellString(row, name))
		return ok
	default:
		// unknown declared types pass, matching the original's permissive stance
		return true
	}
}

func formatMatches(s, format string) bool {
	switch format {
	case "date":
		return dateRE.MatchString(s)
	case "date-time":
		_, ok := ParseDate(s)
		return ok
	case "email":
		return emailRE.MatchString(s)
	case "uri":
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	case "uuid":
		return uuidRE.MatchString(s)
	case "identifier":
		return identifierRE.MatchString(s)
	case "percentage":
		x, err := parsePercent(s)
		return err == nil && x >= 0 && x <= 100
	default:
		return true
	}
}

func parsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	var x float64
	_, err := fmt.Sscanf(s, "%g", &x)
	return x, err
}
