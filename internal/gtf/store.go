package gtf

import "sort"

// Store holds the transcript models for a run. It is built once from an
// annotation source and immutable afterwards; all queries are read-only.
type Store struct {
	byID    map[string]*Transcript
	byChrom map[string][]*Transcript
	trees   map[string]*intervalTree
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*Transcript),
		byChrom: make(map[string][]*Transcript),
	}
}

// AddTranscript adds a transcript to the store. Call Build after the last
// add. The chromosome name is normalized so ingest and queries agree.
func (s *Store) AddTranscript(t *Transcript) {
	if len(t.Exons) == 0 {
		return
	}
	t.Chrom = normalizeChrom(t.Chrom)
	s.byID[t.ID] = t
	s.byChrom[t.Chrom] = append(s.byChrom[t.Chrom], t)
}

// Build constructs the per-chromosome interval indexes.
func (s *Store) Build() {
	s.trees = make(map[string]*intervalTree, len(s.byChrom))
	for chrom, transcripts := range s.byChrom {
		s.trees[chrom] = buildIntervalTree(transcripts)
	}
}

// Get returns the transcript with the given ID, or nil.
func (s *Store) Get(id string) *Transcript {
	return s.byID[id]
}

// Overlapping returns all transcripts whose span overlaps [start, end].
func (s *Store) Overlapping(chrom string, start, end int64) []*Transcript {
	tree, ok := s.trees[normalizeChrom(chrom)]
	if !ok {
		return nil
	}
	return tree.overlapping(start, end)
}

// Feature is an annotated interval (exon or intron) returned by
// FeaturesInRange, mirroring a gene-model tabix query.
type Feature struct {
	Kind         string // "exon" or "intron"
	Start        int64
	End          int64
	Strand       int8
	TranscriptID string
	GeneName     string
	ExonNumber   int // strand-aware; for introns, the upstream exon number
}

// FeaturesInRange returns all exon and intron features overlapping
// [start, end], ordered by transcript ID then genomic start. Introns are
// derived from the gaps between consecutive exons.
func (s *Store) FeaturesInRange(chrom string, start, end int64) []Feature {
	transcripts := s.Overlapping(chrom, start, end)
	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].ID < transcripts[j].ID
	})

	var features []Feature
	for _, t := range transcripts {
		for i, e := range t.Exons {
			if overlapLen(e.Start, e.End, start, end) > 0 {
				num, _ := t.ExonNum(i)
				features = append(features, Feature{
					Kind:         "exon",
					Start:        e.Start,
					End:          e.End,
					Strand:       t.Strand,
					TranscriptID: t.ID,
					GeneName:     t.GeneName,
					ExonNumber:   num,
				})
			}
			if i+1 < len(t.Exons) {
				intronStart := e.End + 1
				intronEnd := t.Exons[i+1].Start - 1
				if intronStart <= intronEnd && overlapLen(intronStart, intronEnd, start, end) > 0 {
					num, _ := t.ExonNum(i)
					features = append(features, Feature{
						Kind:         "intron",
						Start:        intronStart,
						End:          intronEnd,
						Strand:       t.Strand,
						TranscriptID: t.ID,
						GeneName:     t.GeneName,
						ExonNumber:   num,
					})
				}
			}
		}
	}
	return features
}

// TranscriptCount returns the total number of transcripts.
func (s *Store) TranscriptCount() int {
	return len(s.byID)
}

// Chromosomes returns a sorted list of chromosomes in the store.
func (s *Store) Chromosomes() []string {
	chroms := make([]string, 0, len(s.byChrom))
	for chrom := range s.byChrom {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// TranscriptsByChrom returns all transcripts on a chromosome.
func (s *Store) TranscriptsByChrom(chrom string) []*Transcript {
	return s.byChrom[chrom]
}

func overlapLen(aStart, aEnd, bStart, bEnd int64) int64 {
	return min(aEnd, bEnd) - max(aStart, bStart) + 1
}

// intervalTree provides O(log n + k) overlap queries using a sorted-slice
// approach. Transcripts are loaded once and never modified after build.
type intervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
}

type interval struct {
	start      int64
	end        int64
	transcript *Transcript
}

func buildIntervalTree(transcripts []*Transcript) *intervalTree {
	if len(transcripts) == 0 {
		return &intervalTree{}
	}

	intervals := make([]interval, len(transcripts))
	for i, t := range transcripts {
		intervals[i] = interval{start: t.TxStart(), end: t.TxEnd(), transcript: t}
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = intervals[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	return &intervalTree{intervals: intervals, maxEnd: maxEnd}
}

// overlapping returns transcripts whose [TxStart, TxEnd] overlaps [start, end].
func (t *intervalTree) overlapping(start, end int64) []*Transcript {
	if len(t.intervals) == 0 {
		return nil
	}

	var result []*Transcript

	// Binary search: first index with interval start > end. All candidates
	// are to the left of it.
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > end
	})

	for i := hi - 1; i >= 0; i-- {
		// maxEnd prunes the scan: if no interval in 0..i reaches start,
		// nothing further left can overlap.
		if t.maxEnd[i] < start {
			break
		}
		if t.intervals[i].end >= start {
			result = append(result, t.intervals[i].transcript)
		}
	}
	return result
}
