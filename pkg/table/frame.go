package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnSchema describes one column of a dataset.
type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
}

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, cs := range s.Columns {
		names[i] = cs.Name
	}
	return names
}

func (s Schema) Col(name string) (ColumnSchema, bool) {
	for _, cs := range s.Columns {
		if cs.Name == name {
			return cs, true
		}
	}
	return ColumnSchema{}, false
}

func (s Schema) HasColumn(name string) bool {
	_, ok := s.Col(name)
	return ok
}

// WithColumn returns a copy of the schema extended by one column.
func (s Schema) WithColumn(cs ColumnSchema) Schema {
	cols := make([]ColumnSchema, 0, len(s.Columns)+1)
	cols = append(cols, s.Columns...)
	cols = append(cols, cs)
	return Schema{Columns: cols}
}

// Frame is a columnar container for one chunk of tabular data. RowOffset is
// the file-global index of the chunk's first row, so issue rows reported by
// validators can be located in the source file.
type Frame struct {
	schema    Schema
	cols      []AnyColumn
	index     map[string]int
	nrows     int
	rowOffset int
}

func NewFrame(s Schema) *Frame {
	f := &Frame{schema: s, cols: make([]AnyColumn, len(s.Columns)), index: make(map[string]int, len(s.Columns))}
	for i, cs := range s.Columns {
		f.cols[i] = newColumnOfKind(cs.Name, cs.Type)
		f.index[cs.Name] = i
	}
	return f
}

func (f *Frame) Schema() Schema       { return f.schema }
func (f *Frame) Rows() int            { return f.nrows }
func (f *Frame) Cols() int            { return len(f.cols) }
func (f *Frame) RowOffset() int       { return f.rowOffset }
func (f *Frame) SetRowOffset(off int) { f.rowOffset = off }

func (f *Frame) HasColumn(n string) bool {
	_, ok := f.index[n]
	return ok
}

func (f *Frame) Column(name string) (AnyColumn, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Typed accessors return nil when the column is absent or of another kind.
func (f *Frame) Bool(name string) *BoolColumn   { return colAs[bool](f, name) }
func (f *Frame) Int(name string) *IntColumn     { return colAs[int64](f, name) }
func (f *Frame) Float(name string) *FloatColumn { return colAs[float64](f, name) }
func (f *Frame) Str(name string) *StringColumn  { return colAs[string](f, name) }
func (f *Frame) Time(name string) *TimeColumn   { return colAs[time.Time](f, name) }

func colAs[T any](f *Frame, name string) *Column[T] {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	c, _ := f.cols[i].(*Column[T])
	return c
}

// AddColumn appends a column of nulls sized to the current row count. It is
// how processing stages attach derived columns (mapped IDs, flags) to a chunk.
func (f *Frame) AddColumn(cs ColumnSchema) error {
	if _, dup := f.index[cs.Name]; dup {
		return fmt.Errorf("table: column %q already exists", cs.Name)
	}
	col := newColumnOfKind(cs.Name, cs.Type)
	for i := 0; i < f.nrows; i++ {
		col.AppendNull()
	}
	f.schema = f.schema.WithColumn(cs)
	f.index[cs.Name] = len(f.cols)
	f.cols = append(f.cols, col)
	return nil
}

// AppendNullRow appends a row with all-null values.
func (f *Frame) AppendNullRow() {
	for _, c := range f.cols {
		c.AppendNull()
	}
	f.nrows++
}

// SetCell sets a single cell by column name; the row must already exist.
// A nil value nulls the cell.
func (f *Frame) SetCell(row int, name string, v any) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("table: unknown column %q", name)
	}
	c := f.cols[i]
	if v == nil {
		c.SetNull(row)
		return nil
	}
	switch col := c.(type) {
	case *BoolColumn:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("table: column %q expects bool, got %T", name, v)
		}
		col.Set(row, b)
	case *IntColumn:
		switch t := v.(type) {
		case int:
			col.Set(row, int64(t))
		case int64:
			col.Set(row, t)
		case float64:
			col.Set(row, int64(t))
		default:
			return fmt.Errorf("table: column %q expects int, got %T", name, v)
		}
	case *FloatColumn:
		switch t := v.(type) {
		case float64:
			col.Set(row, t)
		case float32:
			col.Set(row, float64(t))
		case int:
			col.Set(row, float64(t))
		case int64:
			col.Set(row, float64(t))
		default:
			return fmt.Errorf("table: column %q expects float, got %T", name, v)
		}
	case *StringColumn:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("table: column %q expects string, got %T", name, v)
		}
		col.Set(row, s)
	case *TimeColumn:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("table: column %q expects time.Time, got %T", name, v)
		}
		col.Set(row, t)
	default:
		return fmt.Errorf("table: column %q has unknown kind", name)
	}
	return nil
}

// Value returns the cell value as any, or nil when the cell is null. The
// second return is false when the column does not exist.
func (f *Frame) Value(row int, name string) (any, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	c := f.cols[i]
	if c.IsNull(row) {
		return nil, true
	}
	switch col := c.(type) {
	case *BoolColumn:
		v, _ := col.Get(row)
		return v, true
	case *IntColumn:
		v, _ := col.Get(row)
		return v, true
	case *FloatColumn:
		v, _ := col.Get(row)
		return v, true
	case *StringColumn:
		v, _ := col.Get(row)
		return v, true
	case *TimeColumn:
		v, _ := col.Get(row)
		return v, true
	}
	return nil, true
}

// Float64 coerces a cell to a float. Int and float cells convert directly;
// string cells are parsed. The bool result is false for nulls, absent
// columns, and failed parses.
func (f *Frame) Float64(row int, name string) (float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return 0, false
	}
	switch col := f.cols[i].(type) {
	case *FloatColumn:
		return col.Get(row)
	case *IntColumn:
		v, ok := col.Get(row)
		return float64(v), ok
	case *StringColumn:
		s, ok := col.Get(row)
		if !ok {
			return 0, false
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return x, true
	}
	return 0, false
}

// CellString renders a cell canonically for hashing and key building. Nulls
// render as an empty string; callers that must distinguish nulls check
// IsNull themselves.
func (f *Frame) CellString(row int, name string) string {
	i, ok := f.index[name]
	if !ok {
		return ""
	}
	c := f.cols[i]
	if c.IsNull(row) {
		return ""
	}
	switch col := c.(type) {
	case *BoolColumn:
		v, _ := col.Get(row)
		return strconv.FormatBool(v)
	case *IntColumn:
		v, _ := col.Get(row)
		return strconv.FormatInt(v, 10)
	case *FloatColumn:
		v, _ := col.Get(row)
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *StringColumn:
		v, _ := col.Get(row)
		return v
	case *TimeColumn:
		v, _ := col.Get(row)
		return v.Format(time.RFC3339)
	}
	return ""
}

// CopyRow appends row src of other to f, matching columns by name. Columns
// absent from other stay null.
func (f *Frame) CopyRow(other *Frame, src int) {
	f.AppendNullRow()
	dst := f.nrows - 1
	for _, cs := range f.schema.Columns {
		if !other.HasColumn(cs.Name) {
			continue
		}
		v, _ := other.Value(src, cs.Name)
		if v == nil {
			continue
		}
		_ = f.SetCell(dst, cs.Name, v)
	}
}
