// Package main provides the pavfinder command-line tool.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Global flags
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	// Parse global flags first
	flag.Parse()

	if showVersion {
		fmt.Printf("pavfinder version %s (%s) built %s\n", version, commit, date)
		return ExitSuccess
	}

	initConfig()

	// Check for subcommand
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return ExitUsage
	}

	switch args[0] {
	case "splice":
		return runSplice(args[1:])
	case "index":
		return runIndex(args[1:])
	case "config":
		cmd := newConfigCmd()
		cmd.SetArgs(args[1:])
		if err := cmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitError
		}
		return ExitSuccess
	case "help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printUsage()
		return ExitUsage
	}
}

// initConfig loads ~/.pavfinder.yaml if present. A missing config file is
// not an error.
func initConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	viper.SetConfigName(".pavfinder")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(home)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: could not read config %s: %v\n",
				filepath.Join(home, ".pavfinder.yaml"), err)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pavfinder - Post Assembly Variant Finder

Usage:
  pavfinder [options] <command> [arguments]

Commands:
  splice      Detect splice and structural variants from contig alignments
  index       Convert a GTF gene model to a DuckDB database
  config      Manage pavfinder configuration
  help        Show this help message

Global Options:
  --version   Show version information

Examples:
  # Index a GTF annotation once for fast reloading
  pavfinder index --gtf refGene.gtf --output refGene.duckdb

  # Detect events from transcriptome contig alignments
  pavfinder splice --alignments contigs.psl --contigs contigs.fa \
      --ref genome.fa --gtf refGene.duckdb --outdir out/

For more information on a command, use:
  pavfinder <command> --help
`)
}
