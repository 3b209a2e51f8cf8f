package quality

import (
	"sort"

	"github.com/openpheno/phenoqc/pkg/table"
)

// ClassDistribution summarizes label balance for one column.
type ClassDistribution struct {
	Counts        map[string]int     `json:"counts"`
	Proportions   map[string]float64 `json:"proportions"`
	MinorityClass string             `json:"minority_class,omitempty"`
	MinorityProp  float64            `json:"minority_prop"`
	WarnThreshold float64            `json:"warn_threshold"`
	Warning       bool               `json:"warning"`
}

// ClassCounter accumulates label counts one chunk at a time. Feeding it every
// chunk of a file yields exactly the distribution of the concatenated table.
type ClassCounter struct {
	counts map[string]int
}

func NewClassCounter() *ClassCounter {
	return &ClassCounter{counts: make(map[string]int)}
}

// Update adds the non-null labels of one chunk.
func (c *ClassCounter) Update(f *table.Frame, labelCol string) {
	if !f.HasColumn(labelCol) {
		return
	}
	col, _ := f.Column(labelCol)
	for r := 0; r < f.Rows(); r++ {
		if col.IsNull(r) {
			continue
		}
		c.counts[f.CellString(r, labelCol)]++
	}
}

// Finalize computes proportions and the minority class. Ties on proportion
// break lexicographically so streaming and batch runs agree.
func (c *ClassCounter) Finalize(warnThreshold float64) ClassDistribution {
	if warnThreshold <= 0 {
		warnThreshold = defaultClassWarnThreshold
	}
	out := ClassDistribution{
		Counts:        make(map[string]int, len(c.counts)),
		Proportions:   make(map[string]float64, len(c.counts)),
		WarnThreshold: warnThreshold,
	}
	total := 0
	labels := make([]string, 0, len(c.counts))
	for label, n := range c.counts {
		out.Counts[label] = n
		total += n
		labels = append(labels, label)
	}
	if total == 0 {
		return out
	}
	sort.Strings(labels)
	for _, label := range labels {
		p := float64(c.counts[label]) / float64(total)
		out.Proportions[label] = p
		if out.MinorityClass == "" || p < out.MinorityProp {
			out.MinorityClass = label
			out.MinorityProp = p
		}
	}
	out.Warning = out.MinorityProp < warnThreshold
	return out
}

// ReportClassDistribution is the whole-table form of the counter.
func ReportClassDistribution(f *table.Frame, labelCol string, warnThreshold float64) ClassDistribution {
	c := NewClassCounter()
	c.Update(f, labelCol)
	return c.Finalize(warnThreshold)
}
