package jsonlio

import (
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

func TestStreamReadJSONL(t *testing.T) {
	p := writeTemp(t, "data.jsonl", `{"id":"a","n":1.5}
{"id":"b","n":2}
{"id":"c"}
`)
	sr, err := NewStreamReader(p, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sr.Close() }()

	if cs, ok := sr.Schema().Col("n"); !ok || cs.Type != table.KindFloat {
		t.Fatalf("n inferred as %+v %v", cs, ok)
	}
	total := 0
	for {
		fr, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		total += fr.Rows()
		if fr.RowOffset() == 2 {
			col, _ := fr.Column("n")
			if !col.IsNull(0) {
				t.Fatal("absent key should read as null")
			}
		}
	}
	if total != 3 {
		t.Fatalf("rows = %d", total)
	}
}

func TestStreamReadTopLevelArray(t *testing.T) {
	p := writeTemp(t, "data.json", `[{"id":"a","ok":true},{"id":"b","ok":false}]`)
	sr, err := NewStreamReader(p, 10)
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
	if cs, _ := fr.Schema().Col("ok"); cs.Type != table.KindBool {
		t.Fatalf("ok inferred as %v", cs.Type)
	}
}
