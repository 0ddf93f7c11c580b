package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
)

// newTestTranscript builds a transcript from (start, end) exon pairs.
func newTestTranscript(id, gene string, strand int8, exons ...[2]int64) *gtf.Transcript {
	t := gtf.NewTranscript(id, gene, "chr1", strand)
	for _, e := range exons {
		t.AddExon(gtf.Exon{Start: e[0], End: e[1]})
	}
	return t
}

func TestMapExons(t *testing.T) {
	exons := []gtf.Exon{
		{Start: 100, End: 200},
		{Start: 300, End: 400},
		{Start: 500, End: 600},
	}

	blocks := []align.Block{
		{Start: 150, End: 350}, // spans exons 0 and 1
		{Start: 500, End: 600}, // exact on exon 2
		{Start: 700, End: 800}, // no exon
	}

	matches, err := MapExons(blocks, exons)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	require.Len(t, matches[0], 2)
	assert.Equal(t, ExonMatch{Exon: 0, Code: ">>"}, matches[0][0])
	assert.Equal(t, ExonMatch{Exon: 1, Code: "<<"}, matches[0][1])

	require.Len(t, matches[1], 1)
	assert.Equal(t, ExonMatch{Exon: 2, Code: "=="}, matches[1][0])

	assert.Nil(t, matches[2])
}

func TestIsFullMatch(t *testing.T) {
	tests := []struct {
		name     string
		matches  []BlockMatches
		expected bool
	}{
		{
			name:     "single block exact",
			matches:  []BlockMatches{{{Exon: 0, Code: "=="}}},
			expected: true,
		},
		{
			name:     "single block with leading overhang",
			matches:  []BlockMatches{{{Exon: 0, Code: ">="}}},
			expected: true,
		},
		{
			name:     "single block with trailing overhang",
			matches:  []BlockMatches{{{Exon: 0, Code: "=<"}}},
			expected: true,
		},
		{
			name:     "single block inside exon",
			matches:  []BlockMatches{{{Exon: 0, Code: "><"}}},
			expected: false,
		},
		{
			name: "multi block ascending",
			matches: []BlockMatches{
				{{Exon: 0, Code: ">="}},
				{{Exon: 1, Code: "=="}},
				{{Exon: 2, Code: "=<"}},
			},
			expected: true,
		},
		{
			name: "multi block descending",
			matches: []BlockMatches{
				{{Exon: 2, Code: ">="}},
				{{Exon: 1, Code: "=="}},
				{{Exon: 0, Code: "=<"}},
			},
			expected: true,
		},
		{
			name: "skipped exon",
			matches: []BlockMatches{
				{{Exon: 0, Code: ">="}},
				{{Exon: 2, Code: "=<"}},
			},
			expected: false,
		},
		{
			name: "interior boundary off",
			matches: []BlockMatches{
				{{Exon: 0, Code: ">="}},
				{{Exon: 1, Code: "=>"}},
				{{Exon: 2, Code: "=<"}},
			},
			expected: false,
		},
		{
			name: "unmatched block",
			matches: []BlockMatches{
				{{Exon: 0, Code: ">="}},
				nil,
				{{Exon: 1, Code: "=<"}},
			},
			expected: false,
		},
		{
			name: "block spanning two exons",
			matches: []BlockMatches{
				{{Exon: 0, Code: ">="}},
				{{Exon: 1, Code: "=>"}, {Exon: 2, Code: "<="}},
				{{Exon: 3, Code: "=<"}},
			},
			expected: false,
		},
		{
			name: "terminal block not on boundary",
			matches: []BlockMatches{
				{{Exon: 0, Code: "><"}},
				{{Exon: 1, Code: "=="}},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFullMatch(tt.matches))
		})
	}
}

func TestPickBest_BoundaryAgreementWins(t *testing.T) {
	// txtA's exons agree with both block boundaries; txtB's first exon
	// extends further so its inner boundary is off.
	txtA := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{100, 200}, [2]int64{300, 400})
	txtB := newTestTranscript("ENST0002", "GENEA", 1, [2]int64{100, 210}, [2]int64{300, 400})

	aln := &align.Alignment{
		Query:  "ctg1",
		Target: "chr1",
		Strand: 1,
		Tstart: 100,
		Tend:   400,
		Blocks: []align.Block{{Start: 100, End: 200}, {Start: 300, End: 400}},
	}

	var candidates []Candidate
	for _, txt := range []*gtf.Transcript{txtA, txtB} {
		matches, err := MapExons(aln.Blocks, txt.Exons)
		require.NoError(t, err)
		candidates = append(candidates, Candidate{Transcript: txt, Matches: matches})
	}

	mapping := PickBest(candidates, aln, nil)
	require.NotNil(t, mapping)
	require.Len(t, mapping.Transcripts, 1)
	assert.Equal(t, "ENST0001", mapping.Transcripts[0].ID)
	assert.Equal(t, []string{"GENEA"}, mapping.Genes)
}

func TestPickBest_TieGoesToLongerTranscript(t *testing.T) {
	// Identical agreement over the aligned region; the transcript with
	// more exonic sequence wins.
	short := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{100, 200}, [2]int64{300, 400})
	long := newTestTranscript("ENST0002", "GENEA", 1, [2]int64{100, 200}, [2]int64{300, 400}, [2]int64{900, 1000})

	aln := &align.Alignment{
		Query:  "ctg1",
		Target: "chr1",
		Strand: 1,
		Tstart: 100,
		Tend:   400,
		Blocks: []align.Block{{Start: 100, End: 200}, {Start: 300, End: 400}},
	}

	var candidates []Candidate
	for _, txt := range []*gtf.Transcript{short, long} {
		matches, err := MapExons(aln.Blocks, txt.Exons)
		require.NoError(t, err)
		candidates = append(candidates, Candidate{Transcript: txt, Matches: matches})
	}

	mapping := PickBest(candidates, aln, nil)
	require.NotNil(t, mapping)
	assert.Equal(t, "ENST0002", mapping.Transcripts[0].ID)
}

func TestPickBest_Empty(t *testing.T) {
	assert.Nil(t, PickBest(nil, &align.Alignment{}, nil))
}

func TestMappingOverlap(t *testing.T) {
	txt := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{100, 199}, [2]int64{300, 399})

	m := NewMapping("ctg1", []align.Block{{Start: 100, End: 199}}, []*gtf.Transcript{txt})
	m.Overlap()

	require.Len(t, m.Coverages, 1)
	assert.InDelta(t, 0.5, m.Coverages[0], 1e-9)
}

func TestGroupByGene(t *testing.T) {
	txtA := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{100, 199})
	txtB := newTestTranscript("ENST0002", "GENEA", 1, [2]int64{100, 199}, [2]int64{300, 399})
	txtC := newTestTranscript("ENST0003", "GENEB", 1, [2]int64{500, 599})

	mappings := []*Mapping{
		NewMapping("ctg1", []align.Block{{Start: 100, End: 199}}, []*gtf.Transcript{txtA}),
		NewMapping("ctg2", []align.Block{{Start: 300, End: 399}}, []*gtf.Transcript{txtB}),
		NewMapping("ctg3", []align.Block{{Start: 500, End: 599}}, []*gtf.Transcript{txtC}),
	}

	grouped := GroupByGene(mappings)
	require.Len(t, grouped, 2)

	assert.Equal(t, "ctg1,ctg2", grouped[0].Contig)
	assert.Equal(t, []string{"GENEA"}, grouped[0].Genes)
	assert.Len(t, grouped[0].Transcripts, 2)

	assert.Equal(t, "ctg3", grouped[1].Contig)
	assert.Equal(t, []string{"GENEB"}, grouped[1].Genes)
}

func TestMergeBlocks(t *testing.T) {
	merged := mergeBlocks([]align.Block{
		{Start: 300, End: 400},
		{Start: 100, End: 200},
		{Start: 150, End: 250},
	})
	assert.Equal(t, []align.Block{{Start: 100, End: 250}, {Start: 300, End: 400}}, merged)
}
