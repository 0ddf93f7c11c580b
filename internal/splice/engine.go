package splice

import (
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
	"github.com/wangdi2014/pavfinder/internal/seq"
)

// skipTarget matches alignment targets on unplaced/haplotype scaffolds and
// the mitochondrial chromosome, which are excluded from analysis.
var skipTarget = regexp.MustCompile(`[._Mm]`)

// Engine maps contig alignments to transcripts and detects splice and
// structural variants. The transcript store and sequence accessors are
// read-only, so one engine may process contigs concurrently.
type Engine struct {
	store   *gtf.Store
	ref     seq.Fetcher
	contigs seq.Fetcher
	itd     *ITDFinder
	novel   *NovelSpliceFinder
	fusion  *FusionFinder
	cond    ITDConditions
	logger  *zap.Logger
}

// NewEngine creates an engine over a transcript store, a reference
// sequence accessor and a contig sequence accessor.
func NewEngine(store *gtf.Store, ref, contigs seq.Fetcher, aligner align.SelfAligner, cond ITDConditions) *Engine {
	return &Engine{
		store:   store,
		ref:     ref,
		contigs: contigs,
		itd:     NewITDFinder(aligner, cond),
		novel:   NewNovelSpliceFinder(ref),
		fusion:  NewFusionFinder(),
		cond:    cond,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger on the engine and its components.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
	e.itd.SetLogger(l)
	e.novel.SetLogger(l)
	e.fusion.SetLogger(l)
}

// SetMinIntronSize overrides the deletion/novel-intron size threshold.
func (e *Engine) SetMinIntronSize(size int64) {
	e.novel.SetMinIntronSize(size)
}

// Result holds everything detected for one contig.
type Result struct {
	Contig   string
	Mappings []*Mapping
	Events   []*Adjacency
}

// ProcessContig analyzes the ordered alignments of a single contig.
// A single alignment is checked for splice events, indels and read-through
// fusions; multiple alignments form a chimera and are checked for gene
// fusions.
func (e *Engine) ProcessContig(contig string, alns []*align.Alignment) (*Result, error) {
	result := &Result{Contig: contig}
	chimera := len(alns) > 1

	var chimeraMatches []map[string][]BlockMatches
	var chimeraAlns []*align.Alignment
	chimeraTranscripts := make(map[string]*gtf.Transcript)

	for _, aln := range alns {
		if skipTarget.MatchString(aln.Target) {
			e.logger.Info("skipping alignment target",
				zap.String("contig", contig),
				zap.String("target", aln.Target))
			continue
		}

		features := e.store.FeaturesInRange(aln.Target, aln.Tstart, aln.Tend)

		var withinExon, withinIntron []gtf.Feature
		transcriptsMapped := make(map[string]bool)
		for _, feat := range features {
			if !chimera && aln.Tstart >= feat.Start && aln.Tend <= feat.End {
				switch feat.Kind {
				case "exon":
					withinExon = append(withinExon, feat)
				case "intron":
					withinIntron = append(withinIntron, feat)
				}
			} else if feat.Kind == "exon" {
				transcriptsMapped[feat.TranscriptID] = true
			}
		}

		if len(transcriptsMapped) == 0 {
			if !chimera {
				e.logUnmapped(contig, aln, withinExon, withinIntron)
				result.Mappings = append(result.Mappings, NewMapping(contig, aln.Blocks, nil))
			}
			continue
		}

		txtIDs := make([]string, 0, len(transcriptsMapped))
		for id := range transcriptsMapped {
			txtIDs = append(txtIDs, id)
		}
		sort.Strings(txtIDs)

		allBlockMatches := make(map[string][]BlockMatches, len(txtIDs))
		var candidates []Candidate
		var fullMatched []*gtf.Transcript
		for _, id := range txtIDs {
			txt := e.store.Get(id)
			matches, err := MapExons(aln.Blocks, txt.Exons)
			if err != nil {
				return nil, fmt.Errorf("map exons for %s against %s: %w", contig, id, err)
			}
			allBlockMatches[id] = matches
			candidates = append(candidates, Candidate{Transcript: txt, Matches: matches})
			if !chimera && IsFullMatch(matches) {
				fullMatched = append(fullMatched, txt)
			}
		}

		if chimera {
			chimeraMatches = append(chimeraMatches, allBlockMatches)
			chimeraAlns = append(chimeraAlns, aln)
			for _, id := range txtIDs {
				chimeraTranscripts[id] = e.store.Get(id)
			}
			continue
		}

		if len(fullMatched) > 0 {
			// Contig matches the gene model exactly: record the mapping,
			// nothing to call.
			mapping := NewMapping(contig, aln.Blocks, fullMatched)
			mapping.Overlap()
			result.Mappings = append(result.Mappings, mapping)
			continue
		}

		best := PickBest(candidates, aln, e.logger)
		result.Mappings = append(result.Mappings, best)

		events, err := e.findEvents(allBlockMatches, aln, best.Transcripts[0])
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			e.logger.Debug("partial match but no events", zap.String("contig", contig))
		}
		result.Events = append(result.Events, events...)
	}

	if chimera && len(chimeraMatches) > 1 {
		fusion, err := e.fusion.FindChimera(chimeraMatches, chimeraTranscripts, chimeraAlns)
		if err != nil {
			return nil, fmt.Errorf("chimeric fusion detection for %s: %w", contig, err)
		}
		if fusion != nil {
			result.Events = append(result.Events, fusion)
		}
	}

	return result, nil
}

func (e *Engine) logUnmapped(contig string, aln *align.Alignment, withinExon, withinIntron []gtf.Feature) {
	region := fmt.Sprintf("%s:%d-%d", aln.Target, aln.Tstart, aln.Tend)
	switch {
	case len(withinExon) > 0:
		e.logger.Info("contig mapped within single exon",
			zap.String("contig", contig),
			zap.String("region", region),
			zap.String("transcript", withinExon[0].TranscriptID),
			zap.Int("exon", withinExon[0].ExonNumber))
	case len(withinIntron) > 0:
		e.logger.Info("contig mapped within single intron",
			zap.String("contig", contig),
			zap.String("region", region),
			zap.String("transcript", withinIntron[0].TranscriptID))
	default:
		e.logger.Info("contig unmapped",
			zap.String("contig", contig),
			zap.String("region", region))
	}
}

// findEvents finds events within a single alignment: a read-through fusion
// when the matched transcripts span more than one gene, then splice events
// and indels against the best transcript.
func (e *Engine) findEvents(matchesByTranscript map[string][]BlockMatches, aln *align.Alignment, best *gtf.Transcript) ([]*Adjacency, error) {
	var events []*Adjacency

	transcripts := make(map[string]*gtf.Transcript, len(matchesByTranscript))
	genes := make(map[string]bool)
	for id := range matchesByTranscript {
		txt := e.store.Get(id)
		transcripts[id] = txt
		genes[txt.GeneName] = true
	}

	if len(genes) > 1 {
		if fusion := e.fusion.FindReadThrough(matchesByTranscript, transcripts, aln); fusion != nil {
			events = append(events, fusion)
		}
	}

	// Splice events are called against the best transcript only.
	bestMatches := map[string][]BlockMatches{best.ID: matchesByTranscript[best.ID]}
	for _, ev := range e.novel.FindNovelJunctions(bestMatches, aln, transcripts) {
		adj, err := e.eventToAdjacency(ev, aln)
		if err != nil {
			return nil, err
		}
		events = append(events, adj)
	}

	return events, nil
}

// eventToAdjacency converts a junction event into the canonical variant
// record, extracting the novel sequence and running ITD detection for
// insertions.
func (e *Engine) eventToAdjacency(ev *JunctionEvent, aln *align.Alignment) (*Adjacency, error) {
	txtID := ev.Transcripts[0]
	txt := e.store.Get(txtID)

	adj := &Adjacency{
		Kind:         ev.Kind,
		Chroms:       [2]string{aln.Target, ""},
		Breaks:       ev.Pos,
		Contigs:      []string{aln.Query},
		Genes:        []string{txt.GeneName},
		Transcripts:  []string{txtID},
		Size:         ev.Size,
		ContigBreaks: ev.ContigBreaks,
	}

	// Exon indices are converted to strand-aware exon numbers.
	for _, idx := range ev.Exons[0] {
		num, err := txt.ExonNum(idx)
		if err != nil {
			return nil, fmt.Errorf("exon number for %s: %w", txtID, err)
		}
		adj.Exons = append(adj.Exons, num)
	}

	switch ev.Kind {
	case EventIns:
		novelSeq, err := e.extractNovelSeq(adj)
		if err != nil {
			return nil, err
		}
		adj.NovelSeq = novelSeq
		if !aln.IsForwardStrand() {
			adj.NovelSeq = seq.ReverseComplement(novelSeq)
		}

		if int64(len(novelSeq)) >= e.cond.MinLen {
			contigSeq, err := e.contigs.Seq(adj.Contigs[0])
			if err != nil {
				return nil, fmt.Errorf("fetch contig sequence: %w", err)
			}
			e.itd.Detect(adj, aln, contigSeq)
		}
		adj.Size = sizeOf(int64(len(adj.NovelSeq)))

	case EventDel:
		adj.Size = sizeOf(adj.Breaks[1] - adj.Breaks[0] - 1)
	}

	return adj, nil
}

// extractNovelSeq returns the contig bases strictly between the contig
// breakpoints.
func (e *Engine) extractNovelSeq(adj *Adjacency) (string, error) {
	start, end := adj.ContigBreaks[0], adj.ContigBreaks[1]
	if start > end {
		start, end = end, start
	}
	if start+1 > end-1 {
		return "", nil
	}
	novel, err := e.contigs.Fetch(adj.Contigs[0], start+1, end-1)
	if err != nil {
		return "", fmt.Errorf("fetch novel sequence: %w", err)
	}
	return novel, nil
}
