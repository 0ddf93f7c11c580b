package splice

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
)

// exonBoundScore dominates the side score so that any junction landing
// exactly on an exon boundary outranks every non-bound candidate.
const exonBoundScore = 1000

// FusionFinder detects gene fusions from chimeric alignments and
// read-through fusions within single alignments.
type FusionFinder struct {
	logger *zap.Logger
}

// NewFusionFinder creates a fusion finder.
func NewFusionFinder() *FusionFinder {
	return &FusionFinder{logger: zap.NewNop()}
}

// SetLogger sets the logger for diagnostics.
func (f *FusionFinder) SetLogger(l *zap.Logger) {
	f.logger = l
}

// fusionSide is the chosen transcript for one side of a fusion junction.
type fusionSide struct {
	transcript string
	matches    BlockMatches
	exonBound  bool
}

// FindChimera identifies a gene fusion between consecutive split
// alignments. chimeraMatches holds, per alignment, the per-transcript
// block match lists. A count mismatch between match lists and alignments
// indicates a logic bug and is returned as an error.
func (f *FusionFinder) FindChimera(chimeraMatches []map[string][]BlockMatches, transcripts map[string]*gtf.Transcript, alns []*align.Alignment) (*Adjacency, error) {
	if len(chimeraMatches) != len(alns) {
		return nil, fmt.Errorf("number of block matches (%d) != number of alignments (%d)", len(chimeraMatches), len(alns))
	}

	for n := 0; n+1 < len(alns); n++ {
		aln1, aln2 := alns[n], alns[n+1]

		// Junction-adjacent matches: last block of the upstream alignment,
		// first block of the downstream one.
		juncMatches1 := make(map[string]BlockMatches)
		for txt, matches := range chimeraMatches[n] {
			juncMatches1[txt] = matches[len(aln1.Blocks)-1]
		}
		juncMatches2 := make(map[string]BlockMatches)
		for txt, matches := range chimeraMatches[n+1] {
			juncMatches2[txt] = matches[0]
		}

		// Build the adjacency first to fix L/R orientations; the
		// orientation decides which boundary each side is judged on.
		fusion := callChimericJunction(aln1, aln2)
		side1, side2, ok := f.identifyFusion(juncMatches1, juncMatches2, transcripts, fusion.Orients)
		if !ok {
			continue
		}

		annotateFusion(fusion, side1, side2, transcripts)
		return fusion, nil
	}
	return nil, nil
}

// callChimericJunction builds the fusion adjacency between the 3' contig
// end of aln1 and the 5' contig start of aln2, fixing breakpoint positions
// and orientations from the alignment strands.
func callChimericJunction(aln1, aln2 *align.Alignment) *Adjacency {
	var break1, break2 int64
	var orient1, orient2 string

	if aln1.IsForwardStrand() {
		break1, orient1 = aln1.Tend, "L"
	} else {
		break1, orient1 = aln1.Tstart, "R"
	}
	if aln2.IsForwardStrand() {
		break2, orient2 = aln2.Tstart, "R"
	} else {
		break2, orient2 = aln2.Tend, "L"
	}

	lastQ := aln1.QueryBlocks[len(aln1.QueryBlocks)-1]
	firstQ := aln2.QueryBlocks[0]

	return &Adjacency{
		Kind:         EventFusion,
		Chroms:       [2]string{aln1.Target, aln2.Target},
		Breaks:       [2]int64{break1, break2},
		Orients:      [2]string{orient1, orient2},
		Contigs:      []string{aln1.Query},
		ContigBreaks: [2]int64{lastQ.End, firstQ.Start},
	}
}

// FindReadThrough identifies a fusion within a single alignment spanning
// two genes. Blocks are partitioned by the genes their exon matches belong
// to; a transition between two single-gene blocks is the junction. Blocks
// matching more than one gene make the breakpoint ambiguous: candidates
// are logged for diagnosis and no event is emitted.
func (f *FusionFinder) FindReadThrough(matchesByTranscript map[string][]BlockMatches, transcripts map[string]*gtf.Transcript, aln *align.Alignment) *Adjacency {
	numBlocks := len(aln.Blocks)
	matchesByBlock := make([]map[string]BlockMatches, numBlocks)
	genesInBlock := make([]map[string]bool, numBlocks)
	for i := 0; i < numBlocks; i++ {
		matchesByBlock[i] = make(map[string]BlockMatches)
		genesInBlock[i] = make(map[string]bool)
		for txt, matches := range matchesByTranscript {
			matchesByBlock[i][txt] = matches[i]
			if matches[i] != nil {
				genesInBlock[i][transcripts[txt].GeneName] = true
			}
		}
	}

	for i := 0; i+1 < numBlocks; i++ {
		j := i + 1
		switch {
		case len(genesInBlock[i]) == 1 && len(genesInBlock[j]) == 1:
			if singleGene(genesInBlock[i]) == singleGene(genesInBlock[j]) {
				continue
			}
			side1, side2, ok := f.identifyFusion(matchesByBlock[i], matchesByBlock[j], transcripts, [2]string{"L", "R"})
			if !ok {
				return nil
			}
			fusion := &Adjacency{
				Kind:         EventFusion,
				Chroms:       [2]string{aln.Target, aln.Target},
				Breaks:       [2]int64{aln.Blocks[i].End, aln.Blocks[j].Start},
				Orients:      [2]string{"L", "R"},
				Contigs:      []string{aln.Query},
				ContigBreaks: [2]int64{aln.QueryBlocks[i].End, aln.QueryBlocks[j].Start},
			}
			annotateFusion(fusion, side1, side2, transcripts)
			return fusion

		case len(genesInBlock[i]) > 1:
			f.logger.Info("ambiguous fusion breakpoint within block",
				zap.String("contig", aln.Query),
				zap.Int("block", i),
				zap.Strings("genes", geneList(genesInBlock[i])))
		case len(genesInBlock[j]) > 1:
			f.logger.Info("ambiguous fusion breakpoint within block",
				zap.String("contig", aln.Query),
				zap.Int("block", j),
				zap.Strings("genes", geneList(genesInBlock[j])))
		}
	}

	// Report boundary-anchored candidates for blocks spanning two genes.
	for i, genes := range genesInBlock {
		if len(genes) == 2 {
			f.reportUnknownBreak(aln.Query, i, matchesByBlock[i], transcripts)
		}
	}
	return nil
}

// reportUnknownBreak logs the best left-bound and right-bound transcript
// matches of a two-gene block. Diagnostic only: the breakpoint cannot be
// placed, so no fusion is emitted.
func (f *FusionFinder) reportUnknownBreak(contig string, block int, matches map[string]BlockMatches, transcripts map[string]*gtf.Transcript) {
	type boundMatch struct {
		txt   string
		match ExonMatch
	}
	var leftBound, rightBound []boundMatch
	for txt, ms := range matches {
		for _, m := range ms {
			if m.Code[0] == '=' {
				leftBound = append(leftBound, boundMatch{txt, m})
			}
			if m.Code[1] == '=' {
				rightBound = append(rightBound, boundMatch{txt, m})
			}
		}
	}
	if len(leftBound) == 0 || len(rightBound) == 0 {
		return
	}

	byLength := func(s []boundMatch) {
		sort.SliceStable(s, func(a, b int) bool {
			return transcripts[s[a].txt].Length() > transcripts[s[b].txt].Length()
		})
	}
	byLength(leftBound)
	byLength(rightBound)

	f.logger.Info("fusion with unknown breakpoint",
		zap.String("contig", contig),
		zap.Int("block", block),
		zap.String("left_transcript", leftBound[0].txt),
		zap.Int("left_exon", leftBound[0].match.Exon),
		zap.String("right_transcript", rightBound[0].txt),
		zap.Int("right_exon", rightBound[0].match.Exon))
}

// identifyFusion picks the best transcript for each side of a junction.
func (f *FusionFinder) identifyFusion(matches1, matches2 map[string]BlockMatches, transcripts map[string]*gtf.Transcript, orients [2]string) (fusionSide, fusionSide, bool) {
	side1, ok1 := pickBestSide(matches1, orients[0], transcripts)
	side2, ok2 := pickBestSide(matches2, orients[1], transcripts)
	if !ok1 || !ok2 {
		return fusionSide{}, fusionSide{}, false
	}
	return side1, side2, true
}

// pickBestSide scores each transcript's junction-block match for one side
// of the fusion. The junction-side boundary counts exonBoundScore when
// exact; the distal boundary adds 15/10/5 for '='/'>'/'<'. Ties break by
// transcript length descending, then transcript ID.
func pickBestSide(matches map[string]BlockMatches, orient string, transcripts map[string]*gtf.Transcript) (fusionSide, bool) {
	txts := make([]string, 0, len(matches))
	for txt := range matches {
		txts = append(txts, txt)
	}
	sort.Strings(txts)
	if len(txts) == 0 {
		return fusionSide{}, false
	}

	scores := make(map[string]int, len(txts))
	for _, txt := range txts {
		m := matches[txt]
		score := 0
		if m != nil {
			var junc ExonMatch
			var juncChar, distalChar byte
			if orient == "L" {
				junc = m[len(m)-1]
				juncChar, distalChar = junc.Code[1], junc.Code[0]
			} else {
				junc = m[0]
				juncChar, distalChar = junc.Code[0], junc.Code[1]
			}
			if juncChar == '=' {
				score += exonBoundScore
			}
			// A block contained within the exon gets more points.
			switch distalChar {
			case '=':
				score += 15
			case '>':
				score += 10
			case '<':
				score += 5
			}
		}
		scores[txt] = score
	}

	best := txts[0]
	for _, txt := range txts[1:] {
		if scores[txt] > scores[best] {
			best = txt
		} else if scores[txt] == scores[best] && transcripts[txt].Length() > transcripts[best].Length() {
			best = txt
		}
	}

	if matches[best] == nil {
		return fusionSide{}, false
	}
	return fusionSide{
		transcript: best,
		matches:    matches[best],
		exonBound:  scores[best] > exonBoundScore,
	}, true
}

// annotateFusion fills gene/transcript/exon annotations on an adjacency
// and applies the in-frame and PTD rules.
func annotateFusion(fusion *Adjacency, side1, side2 fusionSide, transcripts map[string]*gtf.Transcript) {
	txt1 := transcripts[side1.transcript]
	txt2 := transcripts[side2.transcript]

	fusion.Genes = []string{txt1.GeneName, txt2.GeneName}
	fusion.Transcripts = []string{side1.transcript, side2.transcript}

	exon1, _ := txt1.ExonNum(side1.matches[0].Exon)
	exon2, _ := txt2.ExonNum(side2.matches[0].Exon)
	fusion.Exons = []int{exon1, exon2}

	fusion.ExonBound = [2]bool{side1.exonBound, side2.exonBound}
	fusion.InFrame = side1.exonBound && side2.exonBound

	// A same-gene, exon-bound read-through is a partial tandem duplication.
	if txt1.GeneName == txt2.GeneName && fusion.InFrame {
		fusion.Kind = EventPTD
	}
}

func singleGene(genes map[string]bool) string {
	for g := range genes {
		return g
	}
	return ""
}

func geneList(genes map[string]bool) []string {
	out := make([]string, 0, len(genes))
	for g := range genes {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
