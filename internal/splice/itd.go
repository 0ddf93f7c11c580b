package splice

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/seq"
)

// ITDConditions are the thresholds for calling an insertion a duplication.
type ITDConditions struct {
	MinLen   int64   // minimum duplication length
	MaxApart int64   // maximum distance between the two copies
	MinPID   float64 // minimum percent identity between the copies
}

// DefaultITDConditions mirror the usual command-line defaults.
var DefaultITDConditions = ITDConditions{
	MinLen:   10,
	MaxApart: 10,
	MinPID:   95.0,
}

// ITDFinder determines whether insertion events are internal tandem
// duplications, first by exact repeat search, then by local
// self-alignment.
type ITDFinder struct {
	aligner align.SelfAligner
	cond    ITDConditions
	logger  *zap.Logger
}

// NewITDFinder creates a finder using the given self-aligner for the
// alignment fallback path.
func NewITDFinder(aligner align.SelfAligner, cond ITDConditions) *ITDFinder {
	return &ITDFinder{aligner: aligner, cond: cond, logger: zap.NewNop()}
}

// SetLogger sets the logger for warnings.
func (f *ITDFinder) SetLogger(l *zap.Logger) {
	f.logger = l
}

// span is a 1-based inclusive contig interval.
type span struct {
	start int64
	end   int64
}

// Detect reclassifies adj from ins to ITD when the inserted sequence is a
// local duplication within the contig. All adjacency fields are updated
// together on success; on no-match or aligner failure the adjacency is
// left unchanged.
func (f *ITDFinder) Detect(adj *Adjacency, aln *align.Alignment, contigSeq string) {
	novelSeq := adj.NovelSeq
	if !aln.IsForwardStrand() {
		novelSeq = seq.ReverseComplement(novelSeq)
	}

	// Exact repeat first: only perfect copies.
	if int64(len(novelSeq)) >= f.cond.MinLen {
		if dup, ok := searchExact(novelSeq, contigSeq, f.cond.MaxApart); ok {
			f.commit(adj, aln, dup, "")
			return
		}
	}

	// Fall back to local self-alignment for imperfect copies.
	dup, ok, err := f.searchByAlign(adj, contigSeq)
	if err != nil {
		f.logger.Warn("self-alignment failed, leaving insertion unclassified",
			zap.String("contig", adj.Contigs[0]),
			zap.Error(err))
		return
	}
	if ok {
		f.commit(adj, aln, dup, contigSeq)
	}
}

// searchExact looks for exactly two non-overlapping occurrences of
// novelSeq within contigSeq, no more than maxApart bases apart. Returns
// the two copy spans (1-based).
func searchExact(novelSeq, contigSeq string, maxApart int64) ([2]span, bool) {
	if novelSeq == "" {
		return [2]span{}, false
	}

	var starts []int64
	for from := 0; ; {
		idx := strings.Index(contigSeq[from:], novelSeq)
		if idx < 0 {
			break
		}
		starts = append(starts, int64(from+idx))
		from += idx + len(novelSeq)
	}

	if len(starts) != 2 {
		return [2]span{}, false
	}
	n := int64(len(novelSeq))
	if starts[1]-(starts[0]+n) > maxApart {
		return [2]span{}, false
	}
	return [2]span{
		{start: starts[0] + 1, end: starts[0] + n},
		{start: starts[1] + 1, end: starts[1] + n},
	}, true
}

// searchByAlign finds an imperfect duplication via self-alignment.
// Candidate alignments are filtered: the trivial full-length self match,
// matches shorter than MinLen, and one of each reciprocal pair
// (QueryStart >= TargetStart) are discarded; survivors must meet the
// identity threshold, lie within MaxApart of each other, and overlap the
// insertion's contig breakpoint range. The longest survivor wins.
func (f *ITDFinder) searchByAlign(adj *Adjacency, contigSeq string) ([2]span, bool, error) {
	alns, err := f.aligner.Align(adj.Contigs[0], contigSeq)
	if err != nil {
		return [2]span{}, false, err
	}

	breakStart, breakEnd := adj.ContigBreaks[0], adj.ContigBreaks[1]
	if breakStart > breakEnd {
		breakStart, breakEnd = breakEnd, breakStart
	}

	var best [2]span
	var bestLen int64 = -1
	for _, la := range alns {
		if la.AlignLen == int64(len(contigSeq)) ||
			la.AlignLen < f.cond.MinLen ||
			la.QueryStart >= la.TargetStart {
			continue
		}

		span1 := span{start: la.QueryStart, end: la.QueryEnd}
		span2 := span{start: la.TargetStart, end: la.TargetEnd}

		apart := abs64(min(span1.end, span2.end) - max(span1.start, span2.start))
		overlapsBreak := min(breakEnd, span1.end)-max(breakStart, span1.start) > 0 ||
			min(breakEnd, span2.end)-max(breakStart, span2.start) > 0

		if la.PercentIdentity >= f.cond.MinPID && apart <= f.cond.MaxApart && overlapsBreak {
			if la.AlignLen > bestLen {
				bestLen = la.AlignLen
				best = [2]span{span1, span2}
			}
		}
	}

	return best, bestLen >= 0, nil
}

// commit applies the ins -> ITD reclassification. contigSeq is non-empty
// only for the alignment path, where the genomic breakpoints and novel
// sequence are recomputed from the duplication coordinates. All fields
// are derived before any is assigned.
func (f *ITDFinder) commit(adj *Adjacency, aln *align.Alignment, dup [2]span, contigSeq string) {
	newContigBreaks := [2]int64{dup[0].end, dup[1].start}

	newBreaks := adj.Breaks
	newNovelSeq := adj.NovelSeq
	if contigSeq != "" {
		// Shift the genomic breakpoints by the same offset the contig
		// breakpoint moved, following the alignment strand.
		shift := newContigBreaks[0] - adj.ContigBreaks[0]
		var pos int64
		if aln.IsForwardStrand() {
			pos = adj.Breaks[0] + shift
			newBreaks = [2]int64{pos - 1, pos}
		} else {
			pos = adj.Breaks[0] - shift
			newBreaks = [2]int64{pos, pos + 1}
		}

		// The second copy becomes the novel sequence.
		dupSize := max(dup[0].end-dup[0].start+1, dup[1].end-dup[1].start+1)
		copyStart := dup[1].start - 1
		copyEnd := copyStart + dupSize
		if copyEnd > int64(len(contigSeq)) {
			copyEnd = int64(len(contigSeq))
		}
		newNovelSeq = contigSeq[copyStart:copyEnd]
		if !aln.IsForwardStrand() {
			newNovelSeq = seq.ReverseComplement(newNovelSeq)
		}
	}

	adj.Kind = EventITD
	adj.ContigBreaks = newContigBreaks
	adj.Breaks = newBreaks
	adj.NovelSeq = newNovelSeq
	adj.Size = sizeOf(int64(len(newNovelSeq)))
}
