package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
	"github.com/wangdi2014/pavfinder/internal/output"
	"github.com/wangdi2014/pavfinder/internal/seq"
	"github.com/wangdi2014/pavfinder/internal/splice"
)

func runSplice(args []string) int {
	fs := flag.NewFlagSet("splice", flag.ExitOnError)

	cond := splice.DefaultITDConditions
	if viper.IsSet("itd.min_len") {
		cond.MinLen = viper.GetInt64("itd.min_len")
	}
	if viper.IsSet("itd.max_apart") {
		cond.MaxApart = viper.GetInt64("itd.max_apart")
	}
	if viper.IsSet("itd.min_pid") {
		cond.MinPID = viper.GetFloat64("itd.min_pid")
	}

	var (
		alnPath     string
		contigsPath string
		refPath     string
		modelPath   string
		outDir      string
		minIntron   int64
		workers     int
		blastnBin   string
		scratchDir  string
		debug       bool
	)

	fs.StringVar(&alnPath, "alignments", "", "Contig-to-genome alignments (PSL)")
	fs.StringVar(&alnPath, "a", "", "Contig-to-genome alignments (PSL) (shorthand)")
	fs.StringVar(&contigsPath, "contigs", "", "Assembled contig sequences (FASTA)")
	fs.StringVar(&contigsPath, "c", "", "Assembled contig sequences (FASTA) (shorthand)")
	fs.StringVar(&refPath, "ref", "", "Reference genome sequences (FASTA)")
	fs.StringVar(&refPath, "r", "", "Reference genome sequences (FASTA) (shorthand)")
	fs.StringVar(&modelPath, "gtf", "", "Gene model: GTF file or DuckDB database from 'pavfinder index'")
	fs.StringVar(&modelPath, "g", "", "Gene model (shorthand)")
	fs.StringVar(&outDir, "outdir", "", "Output directory")
	fs.StringVar(&outDir, "o", "", "Output directory (shorthand)")
	fs.Int64Var(&cond.MinLen, "itd-min-len", cond.MinLen, "Minimum ITD duplication length")
	fs.Int64Var(&cond.MaxApart, "itd-max-apart", cond.MaxApart, "Maximum gap between ITD copies")
	fs.Float64Var(&cond.MinPID, "itd-min-pid", cond.MinPID, "Minimum percent identity for ITD self-alignment")
	fs.Int64Var(&minIntron, "min-intron", 20, "Minimum gap size to call a novel intron instead of a deletion")
	fs.IntVar(&workers, "workers", viper.GetInt("workers"), "Number of parallel workers (0 = all CPUs)")
	fs.StringVar(&blastnBin, "blastn", viper.GetString("blastn"), "Path to the blastn binary (optional)")
	fs.StringVar(&scratchDir, "scratch", "", "Scratch directory for alignment temp files")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Detect splice variants, gene fusions and ITDs from assembled
transcriptome contigs aligned to a reference genome.

Usage:
  pavfinder splice [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pavfinder splice -a contigs.psl -c contigs.fa -r genome.fa \
      -g refGene.gtf -o out/
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	for _, req := range []struct{ name, val string }{
		{"alignments", alnPath},
		{"contigs", contigsPath},
		{"ref", refPath},
		{"gtf", modelPath},
		{"outdir", outDir},
	} {
		if req.val == "" {
			fmt.Fprintf(os.Stderr, "Error: --%s is required\n\n", req.name)
			fs.Usage()
			return ExitUsage
		}
	}

	logger, err := newLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer logger.Sync()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		return ExitError
	}

	store, err := loadGeneModel(modelPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading gene model: %v\n", err)
		return ExitError
	}

	logger.Info("loading reference sequences", zap.String("path", refPath))
	ref, err := seq.LoadFasta(refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading reference: %v\n", err)
		return ExitError
	}

	logger.Info("loading contig sequences", zap.String("path", contigsPath))
	contigs, err := seq.LoadFasta(contigsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading contigs: %v\n", err)
		return ExitError
	}

	alns, order, err := align.ReadPSL(alnPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading alignments: %v\n", err)
		return ExitError
	}
	logger.Info("parsed alignments",
		zap.Int("contigs", len(order)),
		zap.String("path", alnPath))

	aligner := selfAligner(blastnBin, scratchDir, logger)

	engine := splice.NewEngine(store, ref, contigs, aligner, cond)
	engine.SetLogger(logger)
	engine.SetMinIntronSize(minIntron)

	items := make(chan splice.WorkItem)
	go func() {
		for i, contig := range order {
			items <- splice.WorkItem{Seq: i, Contig: contig, Alns: alns[contig]}
		}
		close(items)
	}()

	var mappings []*splice.Mapping
	var events []*splice.Adjacency
	results := engine.ParallelProcess(items, workers)
	err = splice.OrderedCollect(results, func(r splice.WorkResult) error {
		if r.Err != nil {
			return fmt.Errorf("contig %s: %w", r.Contig, r.Err)
		}
		mappings = append(mappings, r.Result.Mappings...)
		events = append(events, r.Result.Events...)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	if err := writeResults(outDir, mappings, events); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		return ExitError
	}

	logger.Info("done",
		zap.Int("mappings", len(mappings)),
		zap.Int("events", len(events)),
		zap.String("outdir", outDir))
	return ExitSuccess
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadGeneModel reads the gene model from either a GTF file or a DuckDB
// database produced by the index command.
func loadGeneModel(path string, logger *zap.Logger) (*gtf.Store, error) {
	if gtf.IsDuckDB(path) {
		logger.Info("loading gene model from duckdb", zap.String("path", path))
		db, err := gtf.OpenDuckDB(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		store, err := db.Load()
		if err != nil {
			return nil, err
		}
		logger.Info("gene model loaded", zap.Int("transcripts", store.TranscriptCount()))
		return store, nil
	}

	logger.Info("loading gene model from gtf", zap.String("path", path))
	store, err := gtf.NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	logger.Info("gene model loaded", zap.Int("transcripts", store.TranscriptCount()))
	return store, nil
}

func selfAligner(blastnBin, scratchDir string, logger *zap.Logger) align.SelfAligner {
	if blastnBin != "" {
		b := &align.BlastnAligner{Binary: blastnBin, Dir: align.ScratchDir(scratchDir)}
		if b.Available() {
			logger.Info("using blastn for duplication search", zap.String("binary", blastnBin))
			return b
		}
		logger.Warn("blastn binary not found, using built-in aligner",
			zap.String("binary", blastnBin))
		return &align.SWAligner{}
	}
	aligner := align.DefaultSelfAligner(align.ScratchDir(scratchDir))
	if _, ok := aligner.(*align.BlastnAligner); ok {
		logger.Info("using blastn for duplication search")
	}
	return aligner
}

func writeResults(outDir string, mappings []*splice.Mapping, events []*splice.Adjacency) error {
	eventsFile, err := os.Create(filepath.Join(outDir, "events.tsv"))
	if err != nil {
		return err
	}
	defer eventsFile.Close()

	ew := output.NewEventWriter(eventsFile)
	if err := ew.WriteHeader(); err != nil {
		return err
	}
	for _, ev := range events {
		if err := ew.Write(ev); err != nil {
			return err
		}
	}
	if err := ew.Flush(); err != nil {
		return err
	}

	contigFile, err := os.Create(filepath.Join(outDir, "contig_mappings.tsv"))
	if err != nil {
		return err
	}
	defer contigFile.Close()

	mw := output.NewMappingWriter(contigFile)
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	for _, m := range mappings {
		if err := mw.Write(m); err != nil {
			return err
		}
	}
	if err := mw.Flush(); err != nil {
		return err
	}

	geneFile, err := os.Create(filepath.Join(outDir, "gene_mappings.tsv"))
	if err != nil {
		return err
	}
	defer geneFile.Close()

	gw := output.NewGeneMappingWriter(geneFile)
	if err := gw.WriteHeader(); err != nil {
		return err
	}
	for _, m := range splice.GroupByGene(mappings) {
		if err := gw.Write(m); err != nil {
			return err
		}
	}
	return gw.Flush()
}
