package jsonlio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/openpheno/phenoqc/pkg/io/ioutils"
	"github.com/openpheno/phenoqc/pkg/table"
)

// StreamReader reads JSON tabular data into Frame chunks. Both
// newline-delimited records and a single top-level array of records are
// accepted.
type StreamReader struct {
	rc        io.ReadCloser
	dec       *json.Decoder
	array     bool
	schema    table.Schema
	buf       []map[string]any // sampled records pending replay
	chunkSize int
	nextRow   int
}

func NewStreamReader(path string, chunkSize int) (*StreamReader, error) {
	rc, err := ioutils.OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(rc)
	array := false
	if b, err := peekNonSpace(br); err == nil && b == '[' {
		array = true
	}
	dec := json.NewDecoder(br)
	if array {
		if _, err := dec.Token(); err != nil { // consume '['
			_ = rc.Close()
			return nil, err
		}
	}
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	s := &StreamReader{rc: rc, dec: dec, array: array, chunkSize: chunkSize}
	if err := s.inferSchema(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return s, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for n := 1; n <= 512; n++ {
		b, err := br.Peek(n)
		if err != nil {
			return 0, err
		}
		switch b[n-1] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b[n-1], nil
		}
	}
	return 0, fmt.Errorf("jsonlio: no content in first 512 bytes")
}

func (s *StreamReader) decodeRecord() (map[string]any, error) {
	if s.array && !s.dec.More() {
		return nil, io.EOF
	}
	var m map[string]any
	if err := s.dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// inferSchema samples up to 100 records. Keys are sorted so the column order
// is stable across runs.
func (s *StreamReader) inferSchema() error {
	keysSet := map[string]struct{}{}
	for len(s.buf) < 100 {
		m, err := s.decodeRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.buf = append(s.buf, m)
		for k := range m {
			keysSet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keysSet))
	for k := range keysSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.schema = table.Schema{Columns: make([]table.ColumnSchema, len(keys))}
	for i, k := range keys {
		s.schema.Columns[i] = table.ColumnSchema{Name: k, Type: inferKind(s.buf, k), Nullable: true}
	}
	return nil
}

func inferKind(sample []map[string]any, key string) table.Kind {
	num, integer, str, boolean := 0, 0, 0, 0
	for _, m := range sample {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			num++
			if t == float64(int64(t)) {
				integer++
			}
		case bool:
			boolean++
		case string:
			str++
		default:
			str++
		}
	}
	switch {
	case num > 0 && str == 0 && boolean == 0 && integer == num:
		return table.KindInt
	case num > 0 && str == 0 && boolean == 0:
		return table.KindFloat
	case boolean > 0 && str == 0 && num == 0:
		return table.KindBool
	default:
		return table.KindString
	}
}

func (s *StreamReader) Schema() table.Schema { return s.schema }

func (s *StreamReader) Next() (*table.Frame, error) {
	f := table.NewFrame(s.schema)
	f.SetRowOffset(s.nextRow)
	for len(s.buf) > 0 && f.Rows() < s.chunkSize {
		s.appendRecord(f, s.buf[0])
		s.buf = s.buf[1:]
	}
	for f.Rows() < s.chunkSize {
		m, err := s.decodeRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		s.appendRecord(f, m)
	}
	if f.Rows() == 0 {
		return nil, io.EOF
	}
	s.nextRow += f.Rows()
	return f, nil
}

func (s *StreamReader) appendRecord(f *table.Frame, m map[string]any) {
	f.AppendNullRow()
	row := f.Rows() - 1
	for _, cs := range s.schema.Columns {
		v, ok := m[cs.Name]
		if !ok || v == nil {
			continue
		}
		switch cs.Type {
		case table.KindFloat:
			if x, ok := v.(float64); ok {
				_ = f.SetCell(row, cs.Name, x)
			}
		case table.KindInt:
			if x, ok := v.(float64); ok {
				_ = f.SetCell(row, cs.Name, int64(x))
			}
		case table.KindBool:
			if x, ok := v.(bool); ok {
				_ = f.SetCell(row, cs.Name, x)
			}
		default:
			_ = f.SetCell(row, cs.Name, fmt.Sprint(v))
		}
	}
}

func (s *StreamReader) Close() error { return s.rc.Close() }

// StreamWriter appends frames as newline-delimited JSON records.
type StreamWriter struct {
	enc *json.Encoder
	out io.WriteCloser
}

func NewStreamWriter(path string) (*StreamWriter, error) {
	out, err := ioutils.CreateMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{enc: json.NewEncoder(out), out: out}, nil
}

func (s *StreamWriter) Write(f *table.Frame) error {
	for r := 0; r < f.Rows(); r++ {
		m := make(map[string]any, f.Cols())
		for _, cs := range f.Schema().Columns {
			v, _ := f.Value(r, cs.Name)
			if v == nil {
				continue
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339)
			}
			m[cs.Name] = v
		}
		if err := s.enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *StreamWriter) Close() error { return s.out.Close() }
