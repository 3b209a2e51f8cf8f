package csvio

import (
	"bufio"
	"encoding/csv"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/openpheno/phenoqc/pkg/io/ioutils"
	"github.com/openpheno/phenoqc/pkg/table"
)

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune // 0 = sniff (.tsv defaults to tab)
	SampleRows int  // rows sampled for type inference; default 100
}

var numRE = regexp.MustCompile(`^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`)

// inferKinds guesses a column kind from sampled string records, preferring
// float over int when values mix.
func inferKinds(rows [][]string, ncol int) []table.Kind {
	kinds := make([]table.Kind, ncol)
	for c := 0; c < ncol; c++ {
		num, integer, str := 0, 0, 0
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if numRE.MatchString(v) {
				num++
				if !strings.ContainsAny(v, ".eE") {
					integer++
				}
			} else {
				lv := strings.ToLower(v)
				if lv == "true" || lv == "false" {
					continue
				}
				str++
			}
		}
		switch {
		case num > str && integer == num:
			kinds[c] = table.KindInt
		case num > str:
			kinds[c] = table.KindFloat
		default:
			kinds[c] = table.KindString
		}
	}
	return kinds
}

func sniffDelimiter(path string) rune {
	if filepath.Ext(strings.TrimSuffix(path, ".gz")) == ".tsv" {
		return '\t'
	}
	rc, err := ioutils.OpenMaybeCompressed(path)
	if err != nil {
		return ','
	}
	defer func() { _ = rc.Close() }()
	br := bufio.NewReader(rc)
	sample, _ := br.Peek(4096)
	best, bestCount := ',', -1
	for _, cand := range []byte{',', '\t', ';', '|'} {
		cnt := 0
		for _, b := range sample {
			if b == cand {
				cnt++
			}
		}
		if cnt > bestCount {
			bestCount = cnt
			best = rune(cand)
		}
	}
	return best
}

func appendRecord(f *table.Frame, schema table.Schema, rec []string) {
	f.AppendNullRow()
	row := f.Rows() - 1
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			continue
		}
		val := strings.TrimSpace(rec[i])
		if val == "" {
			continue
		}
		switch cs.Type {
		case table.KindFloat:
			if x, err := strconv.ParseFloat(val, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case table.KindInt:
			if x, err := strconv.ParseInt(val, 10, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			} else if x, err := strconv.ParseFloat(val, 64); err == nil {
				_ = f.SetCell(row, cs.Name, int64(x))
			}
		case table.KindBool:
			if x, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		default:
			_ = f.SetCell(row, cs.Name, val)
		}
	}
}

// readSample reads the header (when present) and up to SampleRows records,
// returning inferred schema plus the raw sampled records for replay.
func readSample(r *csv.Reader, opt ReaderOptions) (table.Schema, [][]string, error) {
	rec, err := r.Read()
	if err != nil {
		return table.Schema{}, nil, err
	}
	var names []string
	if opt.HasHeader {
		names = make([]string, len(rec))
		for i := range rec {
			names[i] = strings.ToValidUTF8(strings.TrimSpace(rec[i]), "?")
		}
		if len(names) > 0 {
			names[0] = strings.TrimPrefix(names[0], "\ufeff")
		}
		rec, err = r.Read()
		if err == io.EOF {
			schema := table.Schema{Columns: make([]table.ColumnSchema, len(names))}
			for i, n := range names {
				schema.Columns[i] = table.ColumnSchema{Name: n, Type: table.KindString, Nullable: true}
			}
			return schema, nil, nil
		}
		if err != nil {
			return table.Schema{}, nil, err
		}
	} else {
		names = make([]string, len(rec))
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
	}

	max := opt.SampleRows
	if max <= 0 {
		max = 100
	}
	sample := [][]string{append([]string(nil), rec...)}
	for len(sample) < max {
		rr, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table.Schema{}, nil, err
		}
		sample = append(sample, append([]string(nil), rr...))
	}

	kinds := inferKinds(sample, len(names))
	schema := table.Schema{Columns: make([]table.ColumnSchema, len(names))}
	for i, n := range names {
		schema.Columns[i] = table.ColumnSchema{Name: n, Type: kinds[i], Nullable: true}
	}
	return schema, sample, nil
}
