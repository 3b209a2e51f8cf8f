package table

import "time"

// Kind enumerates supported logical column types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	}
	return "invalid"
}

// Numeric reports whether values of this kind participate in numeric checks
// and imputation.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// AnyColumn is the type-erased view of a column held by a Frame.
type AnyColumn interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool
	SetNull(i int)
	AppendNull()
}

// Column is a typed, nullable column.
type Column[T any] struct {
	name  string
	kind  Kind
	data  []T
	nulls []bool
}

func newColumn[T any](name string, kind Kind) *Column[T] {
	return &Column[T]{name: name, kind: kind}
}

func (c *Column[T]) Name() string      { return c.name }
func (c *Column[T]) Kind() Kind        { return c.kind }
func (c *Column[T]) Len() int          { return len(c.data) }
func (c *Column[T]) IsNull(i int) bool { return c.nulls[i] }
func (c *Column[T]) SetNull(i int) {
	var zero T
	c.data[i] = zero
	c.nulls[i] = true
}

func (c *Column[T]) Get(i int) (T, bool) { return c.data[i], !c.nulls[i] }
func (c *Column[T]) Set(i int, v T)      { c.data[i] = v; c.nulls[i] = false }

func (c *Column[T]) Append(v T) { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *Column[T]) AppendNull() {
	var zero T
	c.data = append(c.data, zero)
	c.nulls = append(c.nulls, true)
}

// Concrete column types used throughout the pipeline.
type (
	BoolColumn   = Column[bool]
	IntColumn    = Column[int64]
	FloatColumn  = Column[float64]
	StringColumn = Column[string]
	TimeColumn   = Column[time.Time]
)

func NewBoolColumn(name string) *BoolColumn     { return newColumn[bool](name, KindBool) }
func NewIntColumn(name string) *IntColumn       { return newColumn[int64](name, KindInt) }
func NewFloatColumn(name string) *FloatColumn   { return newColumn[float64](name, KindFloat) }
func NewStringColumn(name string) *StringColumn { return newColumn[string](name, KindString) }
func NewTimeColumn(name string) *TimeColumn     { return newColumn[time.Time](name, KindTime) }

func newColumnOfKind(name string, k Kind) AnyColumn {
	switch k {
	case KindBool:
		return NewBoolColumn(name)
	case KindInt:
		return NewIntColumn(name)
	case KindFloat:
		return NewFloatColumn(name)
	case KindTime:
		return NewTimeColumn(name)
	default:
		return NewStringColumn(name)
	}
}
