package parquetio

import (
	"encoding/json"
	"fmt"
	"time"

	local "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	pw "github.com/xitongsys/parquet-go/writer"

	"github.com/openpheno/phenoqc/pkg/table"
)

func parquetSchemaJSON(s table.Schema) string {
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case table.KindFloat:
			tag += "DOUBLE"
		case table.KindInt:
			tag += "INT64"
		case table.KindBool:
			tag += "BOOLEAN"
		default:
			tag += "BYTE_ARRAY, convertedtype=UTF8"
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

// StreamWriter appends frames to a parquet file. The parquet schema is fixed
// by the first frame written, matching the csv sink's lazy-header behavior.
type StreamWriter struct {
	fw     source.ParquetFile
	w      *pw.JSONWriter
	schema table.Schema
}

func NewStreamWriter(path string) (*StreamWriter, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{fw: fw}, nil
}

func (s *StreamWriter) Write(f *table.Frame) error {
	if s.w == nil {
		s.schema = f.Schema()
		w, err := pw.NewJSONWriter(parquetSchemaJSON(s.schema), s.fw, 4)
		if err != nil {
			_ = s.fw.Close()
			return fmt.Errorf("parquetio: writer init: %w", err)
		}
		s.w = w
	}
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, len(s.schema.Columns))
		for _, cs := range s.schema.Columns {
			v, _ := f.Value(r, cs.Name)
			if v == nil {
				continue
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339)
			}
			rec[cs.Name] = v
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := s.w.Write(string(b)); err != nil {
			return fmt.Errorf("parquetio: write row: %w", err)
		}
	}
	return nil
}

func (s *StreamWriter) Close() error {
	if s.w != nil {
		if err := s.w.WriteStop(); err != nil {
			_ = s.fw.Close()
			return err
		}
	}
	return s.fw.Close()
}
