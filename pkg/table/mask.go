package table

// Mask is a boolean table aligned to a chunk's rows, true where a cell
// failed validation. Columns are created lazily so validators only pay for
// columns they actually flag.
type Mask struct {
	nrows int
	order []string
	cols  map[string][]bool
}

func NewMask(nrows int) *Mask {
	return &Mask{nrows: nrows, cols: make(map[string][]bool)}
}

func (m *Mask) Rows() int         { return m.nrows }
func (m *Mask) Columns() []string { return m.order }

func (m *Mask) Set(row int, col string) {
	cells, ok := m.cols[col]
	if !ok {
		cells = make([]bool, m.nrows)
		m.cols[col] = cells
		m.order = append(m.order, col)
	}
	cells[row] = true
}

func (m *Mask) Get(row int, col string) bool {
	cells, ok := m.cols[col]
	if !ok {
		return false
	}
	return cells[row]
}

func (m *Mask) CountTrue() int {
	n := 0
	for _, cells := range m.cols {
		for _, b := range cells {
			if b {
				n++
			}
		}
	}
	return n
}

// RowHasIssue reports whether any cell in the row is flagged.
func (m *Mask) RowHasIssue(row int) bool {
	for _, cells := range m.cols {
		if cells[row] {
			return true
		}
	}
	return false
}

// MaskAccumulator folds per-chunk masks into a file-level mask. Chunks are
// aligned by column union: a column missing from one chunk contributes false
// for that chunk's rows, and rows concatenate in chunk order.
type MaskAccumulator struct {
	nrows int
	order []string
	cols  map[string][]bool
}

func NewMaskAccumulator() *MaskAccumulator {
	return &MaskAccumulator{cols: make(map[string][]bool)}
}

func (a *MaskAccumulator) Rows() int         { return a.nrows }
func (a *MaskAccumulator) Columns() []string { return a.order }

// Append folds one chunk's mask into the accumulator.
func (a *MaskAccumulator) Append(m *Mask) {
	for _, col := range m.Columns() {
		if _, ok := a.cols[col]; !ok {
			// backfill earlier chunks with false
			a.cols[col] = make([]bool, a.nrows)
			a.order = append(a.order, col)
		}
	}
	for col, cells := range a.cols {
		if src, ok := m.cols[col]; ok {
			a.cols[col] = append(cells, src...)
		} else {
			a.cols[col] = append(cells, make([]bool, m.Rows())...)
		}
	}
	a.nrows += m.Rows()
}

func (a *MaskAccumulator) Get(row int, col string) bool {
	cells, ok := a.cols[col]
	if !ok {
		return false
	}
	return cells[row]
}

func (a *MaskAccumulator) CountTrue() int {
	n := 0
	for _, cells := range a.cols {
		for _, b := range cells {
			if b {
				n++
			}
		}
	}
	return n
}
