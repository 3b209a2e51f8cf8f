package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpheno/phenoqc/pkg/table"
)

func fptr(v float64) *float64 { return &v }

func testDoc() *Document {
	return &Document{
		Properties: map[string]Property{
			"SampleID":     {Type: "string"},
			"Measurement":  {Type: "number", Minimum: fptr(0), Maximum: fptr(200)},
			"RecordedDate": {Type: "string", Format: "date"},
		},
		Required: []string{"SampleID"},
	}
}

func testFrame(rows [][]any) *table.Frame {
	s := table.Schema{Columns: []table.ColumnSchema{
		{Name: "SampleID", Type: table.KindString, Nullable: true},
		{Name: "Measurement", Type: table.KindFloat, Nullable: true},
		{Name: "RecordedDate", Type: table.KindString, Nullable: true},
	}}
	f := table.NewFrame(s)
	for i, row := range rows {
		f.AppendNullRow()
		for j, name := range []string{"SampleID", "Measurement", "RecordedDate"} {
			if row[j] != nil {
				_ = f.SetCell(i, name, row[j])
			}
		}
	}
	return f
}

func TestValidateChunkFlagsViolations(t *testing.T) {
	v := NewValidator(testDoc(), []string{"SampleID"})
	f := testFrame([][]any{
		{"a", 10.0, "2024-01-01"},
		{nil, 50.0, "2024-02-01"},   // missing required id
		{"c", -5.0, "2024-03-01"},   // below minimum
		{"d", 10.0, "not-a-date"},   // bad date format
	})
	res := v.ValidateChunk(f)

	require.True(t, f.HasColumn(SchemaViolationColumn))
	assert.False(t, res.FormatValid)

	flag := f.Bool(SchemaViolationColumn)
	got := make([]bool, f.Rows())
	for r := range got {
		got[r], _ = flag.Get(r)
	}
	assert.Equal(t, []bool{false, true, false, false}, got, "only the required-field failure is a record-format issue")

	assert.True(t, res.Mask.Get(2, "Measurement"), "bound violation marks the cell")
	assert.True(t, res.Mask.Get(3, "RecordedDate"), "format violation marks the cell")
	assert.False(t, res.Mask.Get(0, "Measurement"))
}

func TestIdentifyDuplicatesAndConflicts(t *testing.T) {
	v := NewValidator(testDoc(), []string{"SampleID"})
	f := testFrame([][]any{
		{"a", 10.0, "2024-01-01"},
		{"a", 11.0, "2024-01-01"}, // same id, different measurement: conflict
		{"b", 12.0, "2024-01-01"},
		{nil, 13.0, "2024-01-01"}, // null id never keys
	})
	f.SetRowOffset(100)

	dups := v.IdentifyDuplicates(f, []string{"SampleID"})
	assert.Equal(t, []int{100, 101}, dups, "duplicates report file-global rows")

	conflicts := v.DetectConflicts(f, []string{"SampleID"}, dups)
	assert.Equal(t, []int{100, 101}, conflicts)
}

func TestDetectConflictsAgreeingDuplicates(t *testing.T) {
	v := NewValidator(testDoc(), []string{"SampleID"})
	f := testFrame([][]any{
		{"a", 10.0, "2024-01-01"},
		{"a", 10.0, "2024-01-01"},
	})
	dups := v.IdentifyDuplicates(f, []string{"SampleID"})
	require.Len(t, dups, 2)
	assert.Empty(t, v.DetectConflicts(f, []string{"SampleID"}, dups))
}

func TestVerifyIntegrityBounds(t *testing.T) {
	v := NewValidator(testDoc(), []string{"SampleID"})
	f := testFrame([][]any{
		{"a", 250.0, "2024-01-01"},
		{"b", nil, "2024-01-01"},
	})
	issues := v.VerifyIntegrity(f, []string{"SampleID"})
	require.NotEmpty(t, issues)
	found := false
	for _, is := range issues {
		if is.Column == "Measurement" && is.Row == 0 {
			found = true
		}
	}
	assert.True(t, found, "above-maximum cell should be reported")
}

func TestDegradedSchemaRelaxesMissingColumns(t *testing.T) {
	v := NewValidator(testDoc(), []string{"SampleID", "VisitID"})
	f := testFrame([][]any{{"a", 10.0, "2024-01-01"}})
	res := v.ValidateChunk(f)
	assert.True(t, res.Degraded)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "VisitID")
}

func TestDetectAnomaliesZScore(t *testing.T) {
	s := table.Schema{Columns: []table.ColumnSchema{{Name: "x", Type: table.KindFloat, Nullable: true}}}
	f := table.NewFrame(s)
	vals := []float64{10, 10.5, 9.8, 10.2, 9.9, 10.1, 10.3, 9.7, 10.0, 10.4, 9.6, 10.0, 500}
	for i, v := range vals {
		f.AppendNullRow()
		_ = f.SetCell(i, "x", v)
	}
	v := NewValidator(&Document{Properties: map[string]Property{"x": {Type: "number"}}}, nil)
	rows := v.DetectAnomalies(f)
	require.Len(t, rows, 1)
	assert.Equal(t, len(vals)-1, rows[0].Row)
}

func TestValidateChunkAnomalyToggle(t *testing.T) {
	build := func() *table.Frame {
		s := table.Schema{Columns: []table.ColumnSchema{{Name: "x", Type: table.KindFloat, Nullable: true}}}
		f := table.NewFrame(s)
		for i, v := range []float64{10, 10.5, 9.8, 10.2, 9.9, 10.1, 10.3, 9.7, 10.0, 10.4, 9.6, 10.0, 500} {
			f.AppendNullRow()
			_ = f.SetCell(i, "x", v)
		}
		return f
	}
	doc := &Document{Properties: map[string]Property{"x": {Type: "number"}}}

	on := NewValidator(doc, nil).ValidateChunk(build())
	require.NotEmpty(t, on.AnomalyRows)

	off := NewValidator(doc, nil).WithAnomalyDetection(false).ValidateChunk(build())
	assert.Empty(t, off.AnomalyRows)
}

func TestCheckReferencesFlagsUnknownValues(t *testing.T) {
	f := testFrame([][]any{
		{"a", 10.0, "2024-01-01"},
		{"z", 11.0, "2024-01-02"},
		{nil, 12.0, "2024-01-03"}, // null cells are the required-field checks' business
	})
	f.SetRowOffset(10)

	refs := map[string]map[string]struct{}{
		"SampleID": {"a": {}, "b": {}},
		"SiteID":   {"x": {}}, // not in the chunk, skipped
	}
	v := NewValidator(testDoc(), []string{"SampleID"}).WithReferences(refs)
	issues := v.CheckReferences(f)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueRow{Row: 11, Column: "SampleID", Value: "z",
		Reason: "value not found in reference data"}, issues[0])
}

func TestParseDateLayouts(t *testing.T) {
	for _, ok := range []string{"2024-01-02", "2024/01/02", "01/02/2024", "2024-01-02T10:00:00Z"} {
		_, parsed := ParseDate(ok)
		assert.True(t, parsed, ok)
	}
	for _, bad := range []string{"not-a-date", "2024-13-99", ""} {
		_, parsed := ParseDate(bad)
		assert.False(t, parsed, bad)
	}
}

func TestKeyOfJoinsIdentifierColumns(t *testing.T) {
	f := testFrame([][]any{{"a", 1.0, "x"}})
	key, ok := KeyOf(f, 0, []string{"SampleID", "RecordedDate"})
	require.True(t, ok)
	assert.Equal(t, "a\x1fx", key)

	_, ok = KeyOf(f, 0, []string{"SampleID", "Missing"})
	assert.False(t, ok)
}
