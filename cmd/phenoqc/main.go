package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/openpheno/phenoqc/pkg/config"
	"github.com/openpheno/phenoqc/pkg/dataio"
	"github.com/openpheno/phenoqc/pkg/pipeline"
	"github.com/openpheno/phenoqc/pkg/report"
	"github.com/openpheno/phenoqc/pkg/schema"
)

var version = "0.1.0-dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to pipeline config (YAML, JSON, or TOML)")
	schemaPath := flag.String("schema", "", "Path to schema document (JSON or YAML)")
	outDir := flag.String("out", "reports", "Output directory for processed files and the report")
	chunkSize := flag.Int("chunk-size", 0, "Override chunk size (rows per chunk)")
	workers := flag.Int("workers", 0, "Override worker pool size")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	generate := flag.String("generate", "", "Write a synthetic dirty dataset to this path and exit")
	genRows := flag.Int("generate-rows", 200, "Row count for --generate")
	genSeed := flag.Int64("generate-seed", 42, "Seed for --generate")
	flag.Parse()

	if *showVersion {
		fmt.Println("phenoqc", version)
		return
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}
	entry := logrus.NewEntry(log)

	if *generate != "" {
		if err := dataio.WriteDirtyCSV(*generate, dataio.GeneratorOptions{Rows: *genRows, Seed: *genSeed}); err != nil {
			entry.WithError(err).Fatal("dataset generation failed")
		}
		entry.WithField("path", *generate).Info("synthetic dataset written")
		return
	}

	if *configPath == "" || *schemaPath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: phenoqc --config <file> --schema <file> [flags] <input file or dir>...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Fatal("cannot load config")
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	doc, err := schema.Load(*schemaPath)
	if err != nil {
		entry.WithError(err).Fatal("cannot load schema")
	}

	files, err := pipeline.CollectFiles(flag.Args())
	if err != nil {
		entry.WithError(err).Fatal("cannot collect input files")
	}
	if len(files) == 0 {
		entry.Fatal("no input files found")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		entry.WithError(err).Fatal("cannot create output directory")
	}

	p := pipeline.New(context.Background(), cfg, doc, *outDir, entry)
	reports := p.Run(files)

	renderer := &report.JSONRenderer{Path: filepath.Join(*outDir, "report.json")}
	if err := renderer.Render(reports); err != nil {
		entry.WithError(err).Fatal("cannot write report")
	}

	failed := 0
	for _, r := range reports {
		if r.Status == pipeline.StatusError {
			failed++
			entry.WithField("file", r.File).Error(r.Message)
		}
	}
	entry.WithFields(logrus.Fields{"files": len(reports), "failed": failed}).Info("batch finished")
	if failed > 0 {
		os.Exit(1)
	}
}
