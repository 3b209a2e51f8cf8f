// Package dataio produces seeded synthetic datasets with realistic defects
// for demos and tests: missing cells, duplicate identifiers, out-of-range
// values, and malformed dates.
package dataio

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"time"
)

type GeneratorOptions struct {
	Rows          int
	Seed          int64
	MissingRate   float64
	DuplicateRate float64
	InvalidRate   float64
}

var phenotypeTerms = []string{
	"seizure",
	"short stature",
	"muscular hypotonia",
	"global developmental delay",
	"microcephaly",
	"scoliosis",
}

var sources = []string{"clinic_a", "clinic_b", "registry"}

// WriteDirtyCSV writes a deterministic dirty dataset. The same options
// always produce byte-identical output.
func WriteDirtyCSV(path string, opt GeneratorOptions) error {
	if opt.Rows <= 0 {
		opt.Rows = 100
	}
	if opt.MissingRate <= 0 {
		opt.MissingRate = 0.1
	}
	if opt.DuplicateRate <= 0 {
		opt.DuplicateRate = 0.05
	}
	if opt.InvalidRate <= 0 {
		opt.InvalidRate = 0.05
	}
	rng := rand.New(rand.NewSource(opt.Seed))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataio: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"SampleID", "ObservedPhenotype", "Measurement", "RecordedDate", "Source"}); err != nil {
		_ = f.Close()
		return err
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < opt.Rows; i++ {
		id := fmt.Sprintf("SAMP-%05d", i+1)
		if i > 0 && rng.Float64() < opt.DuplicateRate {
			id = fmt.Sprintf("SAMP-%05d", rng.Intn(i)+1)
		}
		term := phenotypeTerms[rng.Intn(len(phenotypeTerms))]

		measurement := fmt.Sprintf("%.2f", 50+rng.NormFloat64()*10)
		if rng.Float64() < opt.InvalidRate {
			measurement = fmt.Sprintf("%.2f", -rng.Float64()*100)
		}
		if rng.Float64() < opt.MissingRate {
			measurement = ""
		}

		date := base.AddDate(0, 0, rng.Intn(365)).Format("2006-01-02")
		if rng.Float64() < opt.InvalidRate {
			date = "not-a-date"
		}

		source := sources[rng.Intn(len(sources))]
		if rng.Float64() < opt.MissingRate {
			source = ""
		}

		if err := w.Write([]string{id, term, measurement, date, source}); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
