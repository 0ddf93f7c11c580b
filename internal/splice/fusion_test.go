package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
)

func matchAll(t *testing.T, aln *align.Alignment, txts ...*gtf.Transcript) map[string][]BlockMatches {
	t.Helper()
	out := make(map[string][]BlockMatches)
	for _, txt := range txts {
		matches, err := MapExons(aln.Blocks, txt.Exons)
		require.NoError(t, err)
		out[txt.ID] = matches
	}
	return out
}

func TestFindChimera_Fusion(t *testing.T) {
	txt1 := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{101, 200}, [2]int64{301, 400})
	txt2 := gtf.NewTranscript("ENST0002", "GENEB", "chr2", 1)
	txt2.AddExon(gtf.Exon{Start: 1001, End: 1100})
	txt2.AddExon(gtf.Exon{Start: 1201, End: 1300})

	aln1 := &align.Alignment{
		Query: "ctg1", Target: "chr1", Strand: 1,
		Tstart: 101, Tend: 400,
		Blocks:      []align.Block{{Start: 101, End: 200}, {Start: 301, End: 400}},
		QueryBlocks: []align.Block{{Start: 1, End: 100}, {Start: 101, End: 200}},
	}
	aln2 := &align.Alignment{
		Query: "ctg1", Target: "chr2", Strand: 1,
		Tstart: 1001, Tend: 1300,
		Blocks:      []align.Block{{Start: 1001, End: 1100}, {Start: 1201, End: 1300}},
		QueryBlocks: []align.Block{{Start: 201, End: 300}, {Start: 301, End: 400}},
	}

	chimeraMatches := []map[string][]BlockMatches{
		matchAll(t, aln1, txt1),
		matchAll(t, aln2, txt2),
	}
	transcripts := map[string]*gtf.Transcript{txt1.ID: txt1, txt2.ID: txt2}

	finder := NewFusionFinder()
	fusion, err := finder.FindChimera(chimeraMatches, transcripts, []*align.Alignment{aln1, aln2})
	require.NoError(t, err)
	require.NotNil(t, fusion)

	assert.Equal(t, EventFusion, fusion.Kind)
	assert.Equal(t, [2]string{"chr1", "chr2"}, fusion.Chroms)
	assert.Equal(t, [2]int64{400, 1001}, fusion.Breaks)
	assert.Equal(t, [2]string{"L", "R"}, fusion.Orients)
	assert.Equal(t, [2]int64{200, 201}, fusion.ContigBreaks)
	assert.Equal(t, []string{"GENEA", "GENEB"}, fusion.Genes)
	assert.Equal(t, []string{"ENST0001", "ENST0002"}, fusion.Transcripts)
	assert.Equal(t, []int{2, 1}, fusion.Exons)
	assert.Equal(t, [2]bool{true, true}, fusion.ExonBound)
	assert.True(t, fusion.InFrame)
}

func TestFindChimera_SameGeneIsPTD(t *testing.T) {
	txt := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{101, 200}, [2]int64{301, 400})

	// Both split alignments land on the same transcript at exon
	// boundaries: a partial tandem duplication.
	aln1 := &align.Alignment{
		Query: "ctg1", Target: "chr1", Strand: 1,
		Tstart: 101, Tend: 400,
		Blocks:      []align.Block{{Start: 101, End: 200}, {Start: 301, End: 400}},
		QueryBlocks: []align.Block{{Start: 1, End: 100}, {Start: 101, End: 200}},
	}
	aln2 := &align.Alignment{
		Query: "ctg1", Target: "chr1", Strand: 1,
		Tstart: 101, Tend: 400,
		Blocks:      []align.Block{{Start: 101, End: 200}, {Start: 301, End: 400}},
		QueryBlocks: []align.Block{{Start: 201, End: 300}, {Start: 301, End: 400}},
	}

	chimeraMatches := []map[string][]BlockMatches{
		matchAll(t, aln1, txt),
		matchAll(t, aln2, txt),
	}
	transcripts := map[string]*gtf.Transcript{txt.ID: txt}

	finder := NewFusionFinder()
	fusion, err := finder.FindChimera(chimeraMatches, transcripts, []*align.Alignment{aln1, aln2})
	require.NoError(t, err)
	require.NotNil(t, fusion)

	assert.Equal(t, EventPTD, fusion.Kind)
	assert.Equal(t, []string{"GENEA", "GENEA"}, fusion.Genes)
	assert.True(t, fusion.InFrame)
}

func TestFindChimera_NotExonBound(t *testing.T) {
	txt1 := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{101, 200}, [2]int64{301, 400})
	txt2 := newTestTranscript("ENST0002", "GENEB", 1, [2]int64{501, 600})

	// The upstream junction falls 5 bases short of the exon boundary.
	aln1 := &align.Alignment{
		Query: "ctg1", Target: "chr1", Strand: 1,
		Tstart: 101, Tend: 395,
		Blocks:      []align.Block{{Start: 101, End: 200}, {Start: 301, End: 395}},
		QueryBlocks: []align.Block{{Start: 1, End: 100}, {Start: 101, End: 195}},
	}
	aln2 := &align.Alignment{
		Query: "ctg1", Target: "chr1", Strand: 1,
		Tstart: 501, Tend: 600,
		Blocks:      []align.Block{{Start: 501, End: 600}},
		QueryBlocks: []align.Block{{Start: 196, End: 295}},
	}

	chimeraMatches := []map[string][]BlockMatches{
		matchAll(t, aln1, txt1),
		matchAll(t, aln2, txt2),
	}
	transcripts := map[string]*gtf.Transcript{txt1.ID: txt1, txt2.ID: txt2}

	finder := NewFusionFinder()
	fusion, err := finder.FindChimera(chimeraMatches, transcripts, []*align.Alignment{aln1, aln2})
	require.NoError(t, err)
	require.NotNil(t, fusion)

	assert.Equal(t, EventFusion, fusion.Kind)
	assert.Equal(t, [2]bool{false, true}, fusion.ExonBound)
	assert.False(t, fusion.InFrame)
}

func TestFindChimera_CountMismatch(t *testing.T) {
	finder := NewFusionFinder()
	_, err := finder.FindChimera(
		[]map[string][]BlockMatches{{}},
		nil,
		[]*align.Alignment{{}, {}},
	)
	assert.Error(t, err)
}

func TestFindReadThrough(t *testing.T) {
	txtA := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{101, 200}, [2]int64{301, 400})
	txtB := newTestTranscript("ENST0002", "GENEB", 1, [2]int64{501, 600}, [2]int64{701, 800})

	aln := makeAlignment(
		align.Block{Start: 101, End: 200},
		align.Block{Start: 301, End: 400},
		align.Block{Start: 501, End: 600},
		align.Block{Start: 701, End: 800},
	)

	matches := matchAll(t, aln, txtA, txtB)
	transcripts := map[string]*gtf.Transcript{txtA.ID: txtA, txtB.ID: txtB}

	finder := NewFusionFinder()
	fusion := finder.FindReadThrough(matches, transcripts, aln)
	require.NotNil(t, fusion)

	assert.Equal(t, EventFusion, fusion.Kind)
	assert.Equal(t, [2]string{"chr1", "chr1"}, fusion.Chroms)
	assert.Equal(t, [2]int64{400, 501}, fusion.Breaks)
	assert.Equal(t, [2]string{"L", "R"}, fusion.Orients)
	assert.Equal(t, []string{"GENEA", "GENEB"}, fusion.Genes)
	assert.Equal(t, []int{2, 1}, fusion.Exons)
	assert.True(t, fusion.InFrame)
}

func TestFindReadThrough_AmbiguousBlock(t *testing.T) {
	// The middle block matches exons of both genes: the breakpoint cannot
	// be placed.
	txtA := newTestTranscript("ENST0001", "GENEA", 1, [2]int64{101, 200}, [2]int64{301, 400})
	txtB := newTestTranscript("ENST0002", "GENEB", 1, [2]int64{301, 400}, [2]int64{501, 600})

	aln := makeAlignment(
		align.Block{Start: 101, End: 200},
		align.Block{Start: 301, End: 400},
		align.Block{Start: 501, End: 600},
	)

	matches := matchAll(t, aln, txtA, txtB)
	transcripts := map[string]*gtf.Transcript{txtA.ID: txtA, txtB.ID: txtB}

	finder := NewFusionFinder()
	assert.Nil(t, finder.FindReadThrough(matches, transcripts, aln))
}
