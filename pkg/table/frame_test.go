package table

import (
	"testing"
)

func buildFrame(t *testing.T) *Frame {
	t.Helper()
	s := Schema{Columns: []ColumnSchema{
		{Name: "id", Type: KindString, Nullable: true},
		{Name: "age", Type: KindInt, Nullable: true},
		{Name: "height", Type: KindFloat, Nullable: true},
	}}
	f := NewFrame(s)
	for i := 0; i < 3; i++ {
		f.AppendNullRow()
	}
	_ = f.SetCell(0, "id", "a")
	_ = f.SetCell(1, "id", "b")
	_ = f.SetCell(0, "age", int64(30))
	_ = f.SetCell(2, "age", int64(41))
	_ = f.SetCell(0, "height", 1.7)
	return f
}

func TestFrameAccessors(t *testing.T) {
	f := buildFrame(t)
	if f.Rows() != 3 || f.Cols() != 3 {
		t.Fatalf("unexpected shape %dx%d", f.Rows(), f.Cols())
	}
	if v, ok := f.Float64(0, "age"); !ok || v != 30 {
		t.Fatalf("int column should coerce to float, got %v %v", v, ok)
	}
	if _, ok := f.Float64(1, "age"); ok {
		t.Fatal("null cell must not coerce")
	}
	if got := f.CellString(0, "height"); got != "1.7" {
		t.Fatalf("canonical float text = %q", got)
	}
	if got := f.CellString(1, "age"); got != "" {
		t.Fatalf("null cell text = %q", got)
	}
}

func TestFrameAddColumnBackfillsNulls(t *testing.T) {
	f := buildFrame(t)
	if err := f.AddColumn(ColumnSchema{Name: "flag", Type: KindBool, Nullable: true}); err != nil {
		t.Fatal(err)
	}
	col, _ := f.Column("flag")
	if col.Len() != f.Rows() {
		t.Fatalf("new column length %d, want %d", col.Len(), f.Rows())
	}
	for r := 0; r < f.Rows(); r++ {
		if !col.IsNull(r) {
			t.Fatalf("row %d of a fresh column should be null", r)
		}
	}
}

func TestFrameCopyRow(t *testing.T) {
	src := buildFrame(t)
	dst := NewFrame(src.Schema())
	dst.CopyRow(src, 2)
	if dst.Rows() != 1 {
		t.Fatalf("rows = %d", dst.Rows())
	}
	if v, ok := dst.Float64(0, "age"); !ok || v != 41 {
		t.Fatalf("copied age = %v %v", v, ok)
	}
	// Value reports ok for any present column; nullness shows as a nil value
	if v, ok := dst.Value(0, "id"); !ok || v != nil {
		t.Fatalf("null id should copy as null, got %v %v", v, ok)
	}
	col, _ := dst.Column("id")
	if !col.IsNull(0) {
		t.Fatal("copied id cell should stay null")
	}
	if _, ok := dst.Value(0, "missing"); ok {
		t.Fatal("absent column must not report ok")
	}
}

func TestMaskAccumulatorUnion(t *testing.T) {
	m1 := NewMask(2)
	m1.Set(0, "a")
	m2 := NewMask(3)
	m2.Set(1, "b")
	m2.Set(2, "a")

	acc := NewMaskAccumulator()
	acc.Append(m1)
	acc.Append(m2)

	if acc.Rows() != 5 {
		t.Fatalf("rows = %d", acc.Rows())
	}
	if got := len(acc.Columns()); got != 2 {
		t.Fatalf("columns = %d", got)
	}
	if !acc.Get(0, "a") || acc.Get(0, "b") {
		t.Fatal("first chunk flags misplaced")
	}
	// second chunk rows land after the first chunk's
	if !acc.Get(3, "b") || !acc.Get(4, "a") {
		t.Fatal("second chunk flags misplaced")
	}
	if acc.CountTrue() != 3 {
		t.Fatalf("count = %d", acc.CountTrue())
	}
}
