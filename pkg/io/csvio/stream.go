package csvio

import (
	"encoding/csv"
	"io"

	"github.com/openpheno/phenoqc/pkg/io/ioutils"
	"github.com/openpheno/phenoqc/pkg/table"
)

// StreamReader reads a delimited file into Frame chunks of up to chunkSize
// rows. Each chunk carries the file-global offset of its first row.
type StreamReader struct {
	rc        io.ReadCloser
	r         *csv.Reader
	schema    table.Schema
	buf       [][]string // sampled records pending replay
	chunkSize int
	nextRow   int
}

// NewStreamReader opens path, sniffs the delimiter when unset, infers the
// schema from a sample, and positions the stream at the first data row.
func NewStreamReader(path string, opt ReaderOptions, chunkSize int) (*StreamReader, error) {
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	rc, err := ioutils.OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(rc)
	r.Comma = opt.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	schema, sample, err := readSample(r, opt)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &StreamReader{rc: rc, r: r, schema: schema, buf: sample, chunkSize: chunkSize}, nil
}

func (s *StreamReader) Schema() table.Schema { return s.schema }

// Next returns the next chunk, or io.EOF when the file is exhausted.
func (s *StreamReader) Next() (*table.Frame, error) {
	f := table.NewFrame(s.schema)
	f.SetRowOffset(s.nextRow)
	for len(s.buf) > 0 && f.Rows() < s.chunkSize {
		appendRecord(f, s.schema, s.buf[0])
		s.buf = s.buf[1:]
	}
	for f.Rows() < s.chunkSize {
		rec, err := s.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		appendRecord(f, s.schema, rec)
	}
	if f.Rows() == 0 {
		return nil, io.EOF
	}
	s.nextRow += f.Rows()
	return f, nil
}

func (s *StreamReader) Close() error { return s.rc.Close() }

type WriterOptions struct {
	Delimiter rune // default ','
}

// StreamWriter appends frames to a delimited file, writing the header once
// from the first frame it sees. Later frames may not drop columns, which
// lets processing stages attach derived columns before the first write.
type StreamWriter struct {
	w      *csv.Writer
	out    io.WriteCloser
	schema table.Schema
	opened bool
}

func NewStreamWriter(path string, opt WriterOptions) (*StreamWriter, error) {
	out, err := ioutils.CreateMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(out)
	if opt.Delimiter != 0 {
		w.Comma = opt.Delimiter
	}
	return &StreamWriter{w: w, out: out}, nil
}

func (s *StreamWriter) Write(f *table.Frame) error {
	if !s.opened {
		s.schema = f.Schema()
		hdr := s.schema.Names()
		if err := s.w.Write(hdr); err != nil {
			return err
		}
		s.opened = true
	}
	cols := s.schema.Names()
	row := make([]string, len(cols))
	for r := 0; r < f.Rows(); r++ {
		for c, name := range cols {
			row[c] = f.CellString(r, name)
		}
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *StreamWriter) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.out.Close()
		return err
	}
	return s.out.Close()
}
