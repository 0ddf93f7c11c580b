package splice

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
	"github.com/wangdi2014/pavfinder/internal/seq"
)

// defaultMinIntronSize separates small deletions from novel introns.
const defaultMinIntronSize = 20

// NovelSpliceFinder classifies non-annotated junctions between alignment
// blocks into splice events and indels.
type NovelSpliceFinder struct {
	ref           seq.Fetcher
	minIntronSize int64
	logger        *zap.Logger
}

// NewNovelSpliceFinder creates a finder using the given reference sequence
// accessor for splice-motif checks.
func NewNovelSpliceFinder(ref seq.Fetcher) *NovelSpliceFinder {
	return &NovelSpliceFinder{
		ref:           ref,
		minIntronSize: defaultMinIntronSize,
		logger:        zap.NewNop(),
	}
}

// SetLogger sets the logger for diagnostics.
func (f *NovelSpliceFinder) SetLogger(l *zap.Logger) {
	f.logger = l
}

// SetMinIntronSize overrides the deletion/novel-intron size threshold.
func (f *NovelSpliceFinder) SetMinIntronSize(size int64) {
	f.minIntronSize = size
}

// JunctionEvent is a deduplicated event over a block range, aggregating
// every transcript that produced it.
type JunctionEvent struct {
	Kind            string
	Blocks          []int
	Transcripts     []string
	Exons           [][]int // exon index lists, parallel to Transcripts
	Pos             [2]int64
	ContigBreaks    [2]int64
	HasContigBreaks bool
	Size            *int64
}

// rawEvent is one classification result for a single transcript.
type rawEvent struct {
	kind            string
	exons           []int
	pos             [2]int64
	size            *int64
	blocks          []int
	transcript      string
	contigBreaks    [2]int64
	hasContigBreaks bool
}

// FindNovelJunctions scans consecutive block pairs of an alignment against
// each candidate transcript and returns deduplicated events. Junctions
// annotated in any transcript are skipped for all transcripts.
func (f *NovelSpliceFinder) FindNovelJunctions(blockMatches map[string][]BlockMatches, aln *align.Alignment, transcripts map[string]*gtf.Transcript) []*JunctionEvent {
	// Find junctions already annotated by some transcript.
	annotated := make(map[[2]int]bool)
	for _, matches := range blockMatches {
		for i := 0; i+1 < len(matches); i++ {
			j := i + 1
			if matches[i] == nil || matches[j] == nil {
				continue
			}
			if isJunctionAnnotated(matches[i][len(matches[i])-1], matches[j][0]) {
				annotated[[2]int{i, j}] = true
			}
		}
	}

	var all []rawEvent
	for txtID, matches := range blockMatches {
		txt := transcripts[txtID]
		if txt == nil {
			continue
		}
		for i := 0; i+1 < len(matches); i++ {
			j := i + 1

			if matches[i] == nil && matches[j] != nil {
				// First block unmatched: insertion next to the 5' UTR.
				if i == 0 {
					events := f.classifyNovelJunction(nil, &matches[j][0], aln.Target, aln.Blocks[i:j+1], txt)
					for _, e := range events {
						e.blocks = []int{i, j}
						e.transcript = txtID
						e.contigBreaks = [2]int64{aln.QueryBlocks[i].End, aln.QueryBlocks[j].Start}
						e.hasContigBreaks = true
						all = append(all, e)
					}
				}
				continue
			}

			// A block spanning more than one exon: retained intron.
			if len(matches[i]) > 1 {
				if e, ok := f.classifyRetainedIntron(matches[i], aln.Blocks[i], txt); ok {
					e.blocks = []int{i, j}
					e.transcript = txtID
					all = append(all, e)
				}
			}

			if annotated[[2]int{i, j}] {
				continue
			}

			// Novel exon: skip over unmatched blocks to the next matched
			// block picking up at the following exon.
			if matches[j] == nil && matches[i] != nil {
				for k := j + 1; k < len(matches); k++ {
					if matches[k] != nil && matches[k][0].Exon-matches[i][len(matches[i])-1].Exon == 1 {
						j = k
						break
					}
				}
			}

			if matches[i] != nil && matches[j] != nil {
				m1 := matches[i][len(matches[i])-1]
				m2 := matches[j][0]
				events := f.classifyNovelJunction(&m1, &m2, aln.Target, aln.Blocks[i:j+1], txt)
				for _, e := range events {
					var middle []int
					for b := i + 1; b < j; b++ {
						middle = append(middle, b)
					}
					e.blocks = middle
					e.transcript = txtID
					e.contigBreaks = [2]int64{aln.QueryBlocks[i].End, aln.QueryBlocks[j].Start}
					e.hasContigBreaks = true
					all = append(all, e)
				}
			}
		}
	}

	return groupEvents(all)
}

// groupEvents deduplicates events by (block range, kind), keeping the first
// representative position/size and aggregating contributing transcripts.
func groupEvents(all []rawEvent) []*JunctionEvent {
	if len(all) == 0 {
		return nil
	}

	var keys []string
	grouped := make(map[string][]rawEvent)
	for _, e := range all {
		key := fmt.Sprintf("%v%s", e.blocks, e.kind)
		if _, ok := grouped[key]; !ok {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], e)
	}

	var uniq []*JunctionEvent
	for _, key := range keys {
		events := grouped[key]
		je := &JunctionEvent{
			Kind:            events[0].kind,
			Blocks:          events[0].blocks,
			Pos:             events[0].pos,
			Size:            events[0].size,
			ContigBreaks:    events[0].contigBreaks,
			HasContigBreaks: events[0].hasContigBreaks,
		}
		for _, e := range events {
			je.Transcripts = append(je.Transcripts, e.transcript)
			je.Exons = append(je.Exons, e.exons)
		}
		uniq = append(uniq, je)
	}
	return uniq
}

// classifyRetainedIntron reports a retained intron when one block spans
// exactly two consecutive exons with boundary codes "=>" then "<=".
func (f *NovelSpliceFinder) classifyRetainedIntron(m BlockMatches, block align.Block, txt *gtf.Transcript) (rawEvent, bool) {
	if len(m) != 2 {
		return rawEvent{}, false
	}
	if m[0].Code != "=>" || m[1].Code != "<=" || m[1].Exon != m[0].Exon+1 {
		return rawEvent{}, false
	}
	size := txt.Exons[m[1].Exon].Start - txt.Exons[m[0].Exon].End - 1
	return rawEvent{
		kind:  EventRetainedIntron,
		exons: []int{m[0].Exon, m[1].Exon},
		pos:   [2]int64{block.Start, block.End},
		size:  sizeOf(size),
	}, true
}

// classifyNovelJunction classifies the junction between two flanking block
// matches. m1 is nil when the upstream block matched no exon (sequence
// start case). blocks holds the flanking blocks plus any intervening novel
// blocks.
func (f *NovelSpliceFinder) classifyNovelJunction(m1, m2 *ExonMatch, chrom string, blocks []align.Block, txt *gtf.Transcript) []rawEvent {
	var events []rawEvent
	pos := [2]int64{blocks[0].End, blocks[1].Start}

	if m1 == nil {
		if m2 == nil || m2.Exon != 0 || m2.Code != "<=" {
			return nil
		}
		gap := blocks[1].Start - blocks[0].End - 1
		if gap > 0 {
			kind := EventDel
			if gap > f.minIntronSize && f.isCanonicalJunction(chrom, blocks[0].End, blocks[1].Start, txt.Strand) {
				kind = EventNovelIntron
			}
			events = append(events, rawEvent{kind: kind, exons: []int{m2.Exon}, pos: pos, size: sizeOf(gap)})
		}
		return events
	}

	// Skipped exon(s): non-adjacent exon indices, both junction codes
	// anchored on an exon boundary.
	if m2.Exon > m1.Exon+1 && strings.Contains(m1.Code, "=") && strings.Contains(m2.Code, "=") {
		var size int64
		var skipped []int
		for e := m1.Exon + 1; e < m2.Exon; e++ {
			size += txt.Exons[e].Length()
			skipped = append(skipped, e)
		}
		events = append(events, rawEvent{kind: EventSkippedExon, exons: skipped, pos: pos, size: sizeOf(size)})
	}

	// Same exon on both sides with an interior misalignment: deletion,
	// novel intron or insertion depending on the genomic gap.
	if m1.Exon == m2.Exon && m1.Code[1] == '<' && m2.Code[0] == '>' {
		gap := blocks[1].Start - blocks[0].End - 1
		switch {
		case gap > 0:
			kind := EventDel
			if gap > f.minIntronSize && f.isCanonicalJunction(chrom, blocks[0].End, blocks[1].Start, txt.Strand) {
				kind = EventNovelIntron
			}
			events = append(events, rawEvent{kind: kind, exons: []int{m1.Exon}, pos: pos, size: sizeOf(gap)})
		case gap == 0:
			events = append(events, rawEvent{kind: EventIns, exons: []int{m1.Exon}, pos: pos})
		}
	}

	// Novel acceptor/donor: one side exact, the other not. Which of the
	// two is the donor depends on strand.
	if m1.Code[1] == '=' && m2.Code[0] != '=' {
		size := abs64(blocks[1].Start - txt.Exons[m2.Exon].Start)
		kind := EventNovelAcceptor
		if !txt.IsForwardStrand() {
			kind = EventNovelDonor
		}
		if f.isCanonicalJunction(chrom, blocks[0].End, blocks[1].Start, txt.Strand) {
			events = append(events, rawEvent{kind: kind, exons: []int{m1.Exon, m2.Exon}, pos: pos, size: sizeOf(size)})
		}
	}
	if m1.Code[1] != '=' && m2.Code[0] == '=' {
		size := abs64(blocks[0].End - txt.Exons[m1.Exon].End)
		kind := EventNovelDonor
		if !txt.IsForwardStrand() {
			kind = EventNovelAcceptor
		}
		if f.isCanonicalJunction(chrom, blocks[0].End, blocks[1].Start, txt.Strand) {
			events = append(events, rawEvent{kind: kind, exons: []int{m1.Exon, m2.Exon}, pos: pos, size: sizeOf(size)})
		}
	}

	// Novel exon: consecutive exons with exact junction codes and novel
	// blocks in between.
	if m2.Exon == m1.Exon+1 && m1.Code[1] == '=' && m2.Code[0] == '=' && len(blocks) > 2 {
		exonPos := [2]int64{blocks[1].Start, blocks[len(blocks)-2].End}
		size := exonPos[1] - exonPos[0] + 1
		// The novel exon's flanks are an acceptor then a donor in
		// genomic orientation.
		if f.isCanonicalJunction(chrom, exonPos[1], exonPos[0], txt.Strand) {
			events = append(events, rawEvent{kind: EventNovelExon, exons: nil, pos: exonPos, size: sizeOf(size)})
		}
	}

	return events
}

// isCanonicalJunction checks the 4-base splice motif of the junction
// between an upstream block end and a downstream block start. Coordinates
// are converted to donor/acceptor positions according to strand.
func (f *NovelSpliceFinder) isCanonicalJunction(chrom string, upstreamEnd, downstreamStart int64, strand int8) bool {
	var donorStart, acceptorStart int64
	if strand == 1 {
		donorStart = upstreamEnd + 1
		acceptorStart = downstreamStart - 2
	} else {
		donorStart = downstreamStart - 2
		acceptorStart = upstreamEnd + 1
	}
	ok, err := f.CheckSpliceMotif(chrom, donorStart, acceptorStart, strand)
	if err != nil {
		f.logger.Warn("splice motif check failed",
			zap.String("chrom", chrom),
			zap.Int64("donor_start", donorStart),
			zap.Int64("acceptor_start", acceptorStart),
			zap.Error(err))
		return false
	}
	return ok
}

// CheckSpliceMotif reports whether the 4-base motif around a junction is
// canonical. Only gt-ag is recognized. donorStart and acceptorStart are
// the 1-based genomic positions of the first (smallest) base of each site.
func (f *NovelSpliceFinder) CheckSpliceMotif(chrom string, donorStart, acceptorStart int64, strand int8) (bool, error) {
	donor, err := f.ref.Fetch(chrom, donorStart, donorStart+1)
	if err != nil {
		return false, fmt.Errorf("fetch donor site: %w", err)
	}
	acceptor, err := f.ref.Fetch(chrom, acceptorStart, acceptorStart+1)
	if err != nil {
		return false, fmt.Errorf("fetch acceptor site: %w", err)
	}

	var motif string
	if strand == 1 {
		motif = donor + acceptor
	} else {
		motif = seq.ReverseComplement(acceptor + donor)
	}
	return strings.ToLower(motif) == "gtag", nil
}

// isJunctionAnnotated reports whether two junction-adjacent matches follow
// the gene model: consecutive exons joined at exact boundaries.
func isJunctionAnnotated(m1, m2 ExonMatch) bool {
	return m2.Exon == m1.Exon+1 && m1.Code[1] == '=' && m2.Code[0] == '='
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
