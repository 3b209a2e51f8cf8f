package quality

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"github.com/openpheno/phenoqc/pkg/table"
)

// RedundancyPair flags two columns as redundant, either by Pearson
// correlation at or above the threshold or by byte-identical content.
// Identical content wins when both findings apply to the same pair.
type RedundancyPair struct {
	Column1 string  `json:"column_1"`
	Column2 string  `json:"column_2"`
	Metric  string  `json:"metric"` // correlation or identical
	Value   float64 `json:"value"`
}

// corrState carries the running sums for one ordered numeric column pair,
// over the rows where both cells are present.
type corrState struct {
	n                   float64
	sumX, sumY          float64
	sumXX, sumYY, sumXY float64
}

func (s *corrState) add(x, y float64) {
	s.n++
	s.sumX += x
	s.sumY += y
	s.sumXX += x * x
	s.sumYY += y * y
	s.sumXY += x * y
}

func (s *corrState) pearson() (float64, bool) {
	if s.n < 2 {
		return 0, false
	}
	cov := s.sumXY - s.sumX*s.sumY/s.n
	vx := s.sumXX - s.sumX*s.sumX/s.n
	vy := s.sumYY - s.sumY*s.sumY/s.n
	if vx <= 0 || vy <= 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// RedundancyAccumulator detects redundant columns across a chunked stream
// without retaining the data: correlations accumulate as pair sums, content
// identity as a running per-column hash over canonical cell text.
type RedundancyAccumulator struct {
	threshold float64
	numeric   []string
	columns   []string
	pairs     map[[2]string]*corrState
	hashes    map[string]hash.Hash
}

func NewRedundancyAccumulator(threshold float64) *RedundancyAccumulator {
	if threshold <= 0 {
		threshold = defaultRedundancyThreshold
	}
	return &RedundancyAccumulator{
		threshold: threshold,
		pairs:     make(map[[2]string]*corrState),
		hashes:    make(map[string]hash.Hash),
	}
}

// Add folds one chunk into the accumulator. Column order is fixed by the
// first chunk that mentions a column.
func (a *RedundancyAccumulator) Add(f *table.Frame) {
	for _, cs := range f.Schema().Columns {
		if _, ok := a.hashes[cs.Name]; !ok {
			a.hashes[cs.Name] = sha256.New()
			a.columns = append(a.columns, cs.Name)
			if cs.Type.Numeric() {
				a.numeric = append(a.numeric, cs.Name)
			}
		}
	}
	for r := 0; r < f.Rows(); r++ {
		for _, name := range a.columns {
			h := a.hashes[name]
			if !f.HasColumn(name) {
				h.Write([]byte{0x00})
				continue
			}
			col, _ := f.Column(name)
			if col.IsNull(r) {
				h.Write([]byte{0x00})
			} else {
				h.Write([]byte(f.CellString(r, name)))
			}
			h.Write([]byte{0x1f})
		}
	}
	for i := 0; i < len(a.numeric); i++ {
		for j := i + 1; j < len(a.numeric); j++ {
			c1, c2 := a.numeric[i], a.numeric[j]
			if !f.HasColumn(c1) || !f.HasColumn(c2) {
				continue
			}
			key := [2]string{c1, c2}
			st, ok := a.pairs[key]
			if !ok {
				st = &corrState{}
				a.pairs[key] = st
			}
			for r := 0; r < f.Rows(); r++ {
				x, okx := f.Float64(r, c1)
				y, oky := f.Float64(r, c2)
				if okx && oky {
					st.add(x, y)
				}
			}
		}
	}
}

// Finalize reports all redundant pairs, deterministically ordered.
func (a *RedundancyAccumulator) Finalize() []RedundancyPair {
	var out []RedundancyPair
	flagged := make(map[[2]string]int) // pair -> index into out

	for i := 0; i < len(a.numeric); i++ {
		for j := i + 1; j < len(a.numeric); j++ {
			key := [2]string{a.numeric[i], a.numeric[j]}
			st, ok := a.pairs[key]
			if !ok {
				continue
			}
			if r, ok := st.pearson(); ok && math.Abs(r) >= a.threshold {
				flagged[key] = len(out)
				out = append(out, RedundancyPair{Column1: key[0], Column2: key[1], Metric: "correlation", Value: math.Abs(r)})
			}
		}
	}

	byDigest := make(map[string][]string)
	for _, name := range a.columns {
		d := hex.EncodeToString(a.hashes[name].Sum(nil))
		byDigest[d] = append(byDigest[d], name)
	}
	digests := make([]string, 0, len(byDigest))
	for d := range byDigest {
		digests = append(digests, d)
	}
	sort.Strings(digests)
	for _, d := range digests {
		cols := byDigest[d]
		if len(cols) < 2 {
			continue
		}
		sort.Strings(cols)
		first := cols[0]
		for _, other := range cols[1:] {
			key := [2]string{first, other}
			if idx, ok := flagged[key]; ok {
				// identical content outranks the correlation finding
				out[idx].Metric = "identical"
				out[idx].Value = 1.0
				continue
			}
			out = append(out, RedundancyPair{Column1: first, Column2: other, Metric: "identical", Value: 1.0})
		}
	}
	return out
}

// DetectRedundancy is the whole-table form of the accumulator.
func DetectRedundancy(f *table.Frame, threshold float64) []RedundancyPair {
	acc := NewRedundancyAccumulator(threshold)
	acc.Add(f)
	return acc.Finalize()
}
