package splice

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
)

// ExonMatch pairs an exon index (position in the transcript's sorted exon
// list) with its 2-character match code.
type ExonMatch struct {
	Exon int
	Code string
}

// BlockMatches lists every exon overlapping one alignment block, ordered
// by exon index. A nil value means the block overlaps no exon. A block
// matching more than one exon is a retained-intron candidate.
type BlockMatches []ExonMatch

// MapExons maps each alignment block against every exon of a transcript.
// The result has one entry per block.
//
// Example result for a 4-block alignment:
//
//	[ [ {0 ">="} {1 "<="} ], [ {2 "=="} ], [ {3 "=<"} ], [ {3 ">="} ] ]
//
// The first block spans exons 0 and 1 (retained-intron candidate), the
// second matches exon 2 exactly, and the last two both hit exon 3
// (deletion or novel-intron candidate).
func MapExons(blocks []align.Block, exons []gtf.Exon) ([]BlockMatches, error) {
	result := make([]BlockMatches, 0, len(blocks))
	for _, b := range blocks {
		var matches BlockMatches
		for e, exon := range exons {
			code, err := MatchExon(b, exon)
			if err != nil {
				return nil, err
			}
			if code != "" {
				matches = append(matches, ExonMatch{Exon: e, Code: code})
			}
		}
		result = append(result, matches)
	}
	return result, nil
}

// IsFullMatch reports whether a contig fully represents a transcript: all
// internal exon boundaries match and the terminal blocks end on exon
// boundaries (terminal overhang into flanking sequence is allowed).
func IsFullMatch(blockMatches []BlockMatches) bool {
	for _, m := range blockMatches {
		if m == nil {
			return false
		}
	}

	if len(blockMatches) == 1 {
		if len(blockMatches[0]) == 1 {
			switch blockMatches[0][0].Code {
			case "==", ">=", "=<":
				return true
			}
		}
		return false
	}

	for _, m := range blockMatches {
		if len(m) > 1 {
			return false
		}
	}

	if blockMatches[0][0].Code[1] != '=' || blockMatches[len(blockMatches)-1][0].Code[0] != '=' {
		return false
	}
	for _, m := range blockMatches[1 : len(blockMatches)-1] {
		if m[0].Code != "==" {
			return false
		}
	}

	// Matched exon indices must be consecutive, ascending or descending.
	ascending, descending := true, true
	for i := 1; i < len(blockMatches); i++ {
		prev, cur := blockMatches[i-1][0].Exon, blockMatches[i][0].Exon
		if cur != prev+1 {
			ascending = false
		}
		if cur != prev-1 {
			descending = false
		}
	}
	return ascending || descending
}

// Candidate is one transcript with its per-block match list.
type Candidate struct {
	Transcript *gtf.Transcript
	Matches    []BlockMatches
}

// Mapping records which transcript(s) a contig best represents, with
// per-transcript exon-overlap coverage fractions.
type Mapping struct {
	Contig      string
	Genes       []string
	Transcripts []*gtf.Transcript
	AlignBlocks []align.Block
	Coverages   []float64
}

// NewMapping creates a mapping and derives its gene list.
func NewMapping(contig string, blocks []align.Block, transcripts []*gtf.Transcript) *Mapping {
	m := &Mapping{Contig: contig, AlignBlocks: blocks, Transcripts: transcripts}
	seen := make(map[string]bool)
	for _, t := range transcripts {
		if !seen[t.GeneName] {
			seen[t.GeneName] = true
			m.Genes = append(m.Genes, t.GeneName)
		}
	}
	return m
}

// Overlap computes, for each transcript, the fraction of its exonic span
// covered by the alignment blocks.
func (m *Mapping) Overlap() {
	alignSpan := mergeBlocks(m.AlignBlocks)
	m.Coverages = m.Coverages[:0]
	for _, t := range m.Transcripts {
		exonSpan := mergeExons(t.Exons)
		olap := intersectionLength(exonSpan, alignSpan)
		m.Coverages = append(m.Coverages, float64(olap)/float64(spanLength(exonSpan)))
	}
}

// pickMetric holds the ranking keys for one candidate transcript.
type pickMetric struct {
	score    int
	fromEdge int64
	txtSize  int64
}

// farFromEdge is the from-edge sentinel used when either terminal block is
// unmatched and the true edge distance cannot be computed.
const farFromEdge = 10000

// PickBest selects the transcript that best explains an alignment from a
// set of candidates. Candidates are scored on exon-boundary agreement,
// penalized for unmatched blocks, multi-exon blocks and non-consecutive
// exon jumps, then ranked by (score desc, edge distance asc, transcript
// length desc). Remaining ties resolve by transcript ID so the choice is
// deterministic.
func PickBest(candidates []Candidate, aln *align.Alignment, logger *zap.Logger) *Mapping {
	if len(candidates) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Transcript.ID < ordered[j].Transcript.ID
	})

	metrics := make([]pickMetric, len(ordered))
	for ci, cand := range ordered {
		matches := cand.Matches
		score := 0
		if first := matches[0]; first != nil {
			switch first[0].Code[0] {
			case '=':
				score += 5
			case '>':
				score += 2
			}
			// Inward-facing boundary of the first block.
			if first[len(first)-1].Code[1] == '=' {
				score += 4
			}
		}
		if last := matches[len(matches)-1]; last != nil {
			switch last[len(last)-1].Code[1] {
			case '=':
				score += 5
			case '<':
				score += 2
			}
			// Inward-facing boundary of the last block.
			if last[0].Code[0] == '=' {
				score += 4
			}
		}

		penalty := 0
		for i, m := range matches {
			if m == nil {
				penalty += 2
				continue
			}
			if len(m) > 1 {
				penalty++
			}
			if i < len(matches)-1 && matches[i+1] != nil {
				if matches[i+1][0].Exon != m[len(m)-1].Exon+1 {
					penalty++
				}
			}
		}

		metric := pickMetric{score: score - penalty, txtSize: cand.Transcript.Length()}

		first, last := matches[0], matches[len(matches)-1]
		if first == nil || last == nil {
			metric.fromEdge = farFromEdge
		} else {
			startExon := cand.Transcript.Exons[first[0].Exon]
			endExon := cand.Transcript.Exons[last[len(last)-1].Exon]
			metric.fromEdge = (aln.Tstart - startExon.Start) + (aln.Tend - endExon.End)
		}
		metrics[ci] = metric

		logger.Debug("transcript mapping",
			zap.String("contig", aln.Query),
			zap.String("transcript", cand.Transcript.ID),
			zap.String("gene", cand.Transcript.GeneName),
			zap.Int("score", metric.score),
			zap.Int64("from_edge", metric.fromEdge),
			zap.Int64("txt_size", metric.txtSize))
	}

	order := make([]int, len(ordered))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := metrics[order[a]], metrics[order[b]]
		if ma.score != mb.score {
			return ma.score > mb.score
		}
		if ma.fromEdge != mb.fromEdge {
			return ma.fromEdge < mb.fromEdge
		}
		return ma.txtSize > mb.txtSize
	})

	best := ordered[order[0]].Transcript
	mapping := NewMapping(aln.Query, aln.Blocks, []*gtf.Transcript{best})
	mapping.Overlap()
	return mapping
}

// GroupByGene merges mappings that share a gene, unioning their alignment
// blocks and transcript sets. Input order is preserved; consecutive
// mappings with the same first gene are grouped, matching how mappings are
// accumulated per contig.
func GroupByGene(all []*Mapping) []*Mapping {
	var grouped []*Mapping
	for i := 0; i < len(all); {
		j := i
		gene := firstGene(all[i])
		for j < len(all) && firstGene(all[j]) == gene {
			j++
		}
		group := all[i:j]

		var contig string
		var blocks []align.Block
		var transcripts []*gtf.Transcript
		seen := make(map[string]bool)
		for k, m := range group {
			if k > 0 {
				contig += ","
			}
			contig += m.Contig
			blocks = append(blocks, m.AlignBlocks...)
			for _, t := range m.Transcripts {
				if !seen[t.ID] {
					seen[t.ID] = true
					transcripts = append(transcripts, t)
				}
			}
		}

		merged := NewMapping(contig, mergeBlocks(blocks), transcripts)
		merged.Overlap()
		grouped = append(grouped, merged)
		i = j
	}
	return grouped
}

func firstGene(m *Mapping) string {
	if len(m.Genes) == 0 {
		return ""
	}
	return m.Genes[0]
}

// mergeBlocks returns the sorted union of a set of intervals.
func mergeBlocks(blocks []align.Block) []align.Block {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]align.Block, len(blocks))
	for i, b := range blocks {
		if b.Start > b.End {
			b.Start, b.End = b.End, b.Start
		}
		sorted[i] = b
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []align.Block{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if b.Start <= last.End+1 {
			if b.End > last.End {
				last.End = b.End
			}
		} else {
			merged = append(merged, b)
		}
	}
	return merged
}

func mergeExons(exons []gtf.Exon) []align.Block {
	blocks := make([]align.Block, len(exons))
	for i, e := range exons {
		blocks[i] = align.Block{Start: e.Start, End: e.End}
	}
	return mergeBlocks(blocks)
}

func spanLength(blocks []align.Block) int64 {
	var total int64
	for _, b := range blocks {
		total += b.End - b.Start + 1
	}
	return total
}

// intersectionLength computes the overlap between two sorted, merged
// interval sets.
func intersectionLength(a, b []align.Block) int64 {
	var total int64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Start, b[j].Start)
		hi := min(a[i].End, b[j].End)
		if hi >= lo {
			total += hi - lo + 1
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return total
}
