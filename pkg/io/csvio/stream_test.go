package csvio

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/openpheno/phenoqc/pkg/table"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStreamReadChunks(t *testing.T) {
	p := writeTemp(t, "data.csv", "id,age,height\na,30,1.7\nb,,1.6\nc,41,\n")
	sr, err := NewStreamReader(p, ReaderOptions{HasHeader: true, SampleRows: 10}, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()

	s := sr.Schema()
	if got, _ := s.Col("age"); got.Type != table.KindInt {
		t.Fatalf("age inferred as %v", got.Type)
	}
	if got, _ := s.Col("height"); got.Type != table.KindFloat {
		t.Fatalf("height inferred as %v", got.Type)
	}

	var total int
	var offsets []int
	for {
		fr, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		offsets = append(offsets, fr.RowOffset())
		total += fr.Rows()
	}
	if total != 3 {
		t.Fatalf("total rows = %d", total)
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
		t.Fatalf("row offsets = %v", offsets)
	}
}

func TestStreamReadTSVSniffsDelimiter(t *testing.T) {
	p := writeTemp(t, "data.tsv", "id\tval\nx\t1\ny\t2\n")
	sr, err := NewStreamReader(p, ReaderOptions{HasHeader: true, SampleRows: 10}, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()
	fr, err := sr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if fr.Rows() != 2 || fr.Cols() != 2 {
		t.Fatalf("shape %dx%d", fr.Rows(), fr.Cols())
	}
	if v, ok := fr.Float64(1, "val"); !ok || v != 2 {
		t.Fatalf("val[1] = %v %v", v, ok)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	in := writeTemp(t, "in.csv", "id,score\na,1.5\nb,\n")
	sr, err := NewStreamReader(in, ReaderOptions{HasHeader: true, SampleRows: 10}, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()

	out := filepath.Join(t.TempDir(), "out.csv")
	sw, err := NewStreamWriter(out, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for {
		fr, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if err := sw.Write(fr); err != nil {
			t.Fatal(err)
		}
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "id,score\na,1.5\nb,\n"
	if string(b) != want {
		t.Fatalf("round trip = %q, want %q", string(b), want)
	}
}

func TestStreamReadGzip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.csv.gz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte("id,val\nx,1\ny,2\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	sr, err := NewStreamReader(p, ReaderOptions{HasHeader: true, SampleRows: 10}, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()
	fr, err := sr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if fr.Rows() != 2 {
		t.Fatalf("rows = %d", fr.Rows())
	}
	if v, ok := fr.Float64(1, "val"); !ok || v != 2 {
		t.Fatalf("val[1] = %v %v", v, ok)
	}
}

func TestEmptyFileIsEOF(t *testing.T) {
	p := writeTemp(t, "empty.csv", "id,age\n")
	sr, err := NewStreamReader(p, ReaderOptions{HasHeader: true, SampleRows: 10}, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()
	if _, err := sr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
