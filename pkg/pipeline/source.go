package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openpheno/phenoqc/pkg/io/csvio"
	"github.com/openpheno/phenoqc/pkg/io/jsonlio"
	"github.com/openpheno/phenoqc/pkg/io/parquetio"
	"github.com/openpheno/phenoqc/pkg/table"
)

// ChunkSource yields a file's rows as fixed-size frames in order.
type ChunkSource interface {
	Schema() table.Schema
	Next() (*table.Frame, error)
	Close() error
}

// ChunkSink receives processed frames incrementally.
type ChunkSink interface {
	Write(*table.Frame) error
	Close() error
}

// OpenSource picks a reader by extension. Gzip compression is handled one
// layer down, so "data.csv.gz" routes the same as "data.csv".
func OpenSource(path string, chunkSize int) (ChunkSource, error) {
	switch sourceExt(path) {
	case ".csv", ".tsv", ".txt":
		return csvio.NewStreamReader(path, csvio.ReaderOptions{HasHeader: true, SampleRows: 100}, chunkSize)
	case ".json", ".jsonl":
		return jsonlio.NewStreamReader(path, chunkSize)
	default:
		return nil, fmt.Errorf("pipeline: unsupported input type %q", filepath.Ext(path))
	}
}

// NewSink creates the output writer for a processed file.
func NewSink(path, format string) (ChunkSink, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return csvio.NewStreamWriter(path, csvio.WriterOptions{})
	case "tsv":
		return csvio.NewStreamWriter(path, csvio.WriterOptions{Delimiter: '\t'})
	case "jsonl":
		return jsonlio.NewStreamWriter(path)
	case "parquet":
		return parquetio.NewStreamWriter(path)
	default:
		return nil, fmt.Errorf("pipeline: unsupported output format %q", format)
	}
}

func sourceExt(path string) string {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(name, ".gz")
	return filepath.Ext(name)
}

func supportedInput(path string) bool {
	switch sourceExt(path) {
	case ".csv", ".tsv", ".json", ".jsonl":
		return true
	}
	return false
}

// CollectFiles expands the given paths: files are taken as-is, directories
// are walked recursively for supported extensions. The result is sorted and
// de-duplicated so batch ordering is stable.
func CollectFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if !fi.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedInput(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: walk %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

var formatExt = map[string]string{
	"":        ".csv",
	"csv":     ".csv",
	"tsv":     ".tsv",
	"jsonl":   ".jsonl",
	"parquet": ".parquet",
}

// OutputPath places the processed copy of an input file in outDir, keeping
// the base name and swapping the extension for the output format's.
func OutputPath(outDir, inputPath, format string) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext, ok := formatExt[strings.ToLower(format)]
	if !ok {
		ext = ".csv"
	}
	return filepath.Join(outDir, base+ext)
}
