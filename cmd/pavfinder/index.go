package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wangdi2014/pavfinder/internal/gtf"
)

func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)

	var (
		gtfPath    string
		outputPath string
	)

	fs.StringVar(&gtfPath, "gtf", "", "Input GTF annotation file (may be gzipped)")
	fs.StringVar(&gtfPath, "g", "", "Input GTF annotation file (shorthand)")
	fs.StringVar(&outputPath, "output", "", "Output DuckDB file path")
	fs.StringVar(&outputPath, "o", "", "Output DuckDB file path (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Convert a GTF gene model to a DuckDB database.

Indexed models load much faster than plain GTF and can be shared
across runs.

Usage:
  pavfinder index [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pavfinder index --gtf refGene.gtf.gz --output refGene.duckdb
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	if gtfPath == "" || outputPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --gtf and --output are required\n\n")
		fs.Usage()
		return ExitUsage
	}

	fmt.Fprintf(os.Stderr, "Loading gene model from %s\n", gtfPath)
	store, err := gtf.NewLoader(gtfPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading GTF: %v\n", err)
		return ExitError
	}
	fmt.Fprintf(os.Stderr, "Loaded %d transcripts\n", store.TranscriptCount())

	db, err := gtf.OpenDuckDB(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		return ExitError
	}
	defer db.Close()

	if err := db.CreateSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		return ExitError
	}
	if err := db.ImportStore(store); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing transcripts: %v\n", err)
		return ExitError
	}

	count, err := db.TranscriptCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying database: %v\n", err)
		return ExitError
	}
	fmt.Fprintf(os.Stderr, "Wrote %d transcripts to %s\n", count, outputPath)

	return ExitSuccess
}
