package gtf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStore(transcripts ...*Transcript) *Store {
	store := NewStore()
	for _, t := range transcripts {
		store.AddTranscript(t)
	}
	store.Build()
	return store
}

func transcriptWithExons(id, gene, chrom string, strand int8, exons ...[2]int64) *Transcript {
	t := NewTranscript(id, gene, chrom, strand)
	for _, e := range exons {
		t.AddExon(Exon{Start: e[0], End: e[1]})
	}
	return t
}

func transcriptIDs(transcripts []*Transcript) []string {
	ids := make([]string, len(transcripts))
	for i, t := range transcripts {
		ids[i] = t.ID
	}
	return ids
}

func TestStoreIgnoresExonlessTranscripts(t *testing.T) {
	store := NewStore()
	store.AddTranscript(NewTranscript("ENST0001", "GENEA", "1", 1))
	store.Build()

	assert.Equal(t, 0, store.TranscriptCount())
	assert.Nil(t, store.Get("ENST0001"))
}

func TestAddTranscriptNormalizesChrom(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "chr1", 1, [2]int64{100, 200}),
	)

	// Ingest and query normalize the same way, so a chr-prefixed model
	// answers queries under either naming convention.
	assert.Equal(t, "1", store.Get("ENST0001").Chrom)
	assert.Len(t, store.TranscriptsByChrom("1"), 1)
	assert.ElementsMatch(t, []string{"ENST0001"}, transcriptIDs(store.Overlapping("1", 150, 160)))
	assert.ElementsMatch(t, []string{"ENST0001"}, transcriptIDs(store.Overlapping("chr1", 150, 160)))
	assert.Len(t, store.FeaturesInRange("chr1", 150, 160), 1)
}

func TestOverlapping(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "1", 1, [2]int64{100, 200}, [2]int64{300, 400}),
		transcriptWithExons("ENST0002", "GENEB", "1", 1, [2]int64{1000, 1100}),
		transcriptWithExons("ENST0003", "GENEC", "2", 1, [2]int64{100, 200}),
	)

	tests := []struct {
		name  string
		chrom string
		start int64
		end   int64
		want  []string
	}{
		{"inside first transcript", "1", 150, 160, []string{"ENST0001"}},
		{"inside intron still hits span", "1", 250, 260, []string{"ENST0001"}},
		{"second transcript", "1", 1050, 1060, []string{"ENST0002"}},
		{"chr prefix normalized", "chr1", 150, 160, []string{"ENST0001"}},
		{"other chromosome", "2", 150, 160, []string{"ENST0003"}},
		{"no overlap", "1", 500, 900, nil},
		{"unknown chromosome", "3", 100, 200, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := store.Overlapping(tt.chrom, tt.start, tt.end)
			assert.ElementsMatch(t, tt.want, transcriptIDs(got))
		})
	}
}

// A long transcript that starts well before a cluster of short ones must
// still be found when the query lands past the short ones. This exercises
// the prefix-max pruning of the interval index.
func TestOverlappingNestedIntervals(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "1", 1, [2]int64{1, 1000}),
		transcriptWithExons("ENST0002", "GENEB", "1", 1, [2]int64{500, 600}),
		transcriptWithExons("ENST0003", "GENEC", "1", 1, [2]int64{650, 700}),
	)

	got := store.Overlapping("1", 900, 950)
	assert.ElementsMatch(t, []string{"ENST0001"}, transcriptIDs(got))

	got = store.Overlapping("1", 550, 950)
	assert.ElementsMatch(t, []string{"ENST0001", "ENST0002", "ENST0003"}, transcriptIDs(got))
}

func TestFeaturesInRange(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0002", "GENEA", "1", 1, [2]int64{100, 200}, [2]int64{300, 400}),
		transcriptWithExons("ENST0001", "GENEA", "1", 1, [2]int64{100, 200}, [2]int64{300, 400}, [2]int64{500, 600}),
	)

	features := store.FeaturesInRange("1", 150, 350)
	require.Len(t, features, 6)

	// Ordered by transcript ID, then by position within each transcript.
	assert.Equal(t, "ENST0001", features[0].TranscriptID)
	assert.Equal(t, "ENST0002", features[3].TranscriptID)

	assert.Equal(t, "exon", features[0].Kind)
	assert.Equal(t, int64(100), features[0].Start)
	assert.Equal(t, 1, features[0].ExonNumber)

	assert.Equal(t, "intron", features[1].Kind)
	assert.Equal(t, int64(201), features[1].Start)
	assert.Equal(t, int64(299), features[1].End)
	assert.Equal(t, 1, features[1].ExonNumber)

	assert.Equal(t, "exon", features[2].Kind)
	assert.Equal(t, int64(300), features[2].Start)
	assert.Equal(t, 2, features[2].ExonNumber)
}

func TestFeaturesInRangeReverseStrandIntronNumbers(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "1", -1, [2]int64{100, 200}, [2]int64{300, 400}),
	)

	features := store.FeaturesInRange("1", 100, 400)
	require.Len(t, features, 3)

	// Exons numbered in transcription direction on the reverse strand.
	assert.Equal(t, "exon", features[0].Kind)
	assert.Equal(t, 2, features[0].ExonNumber)

	// The intron carries the upstream (left) exon's number.
	assert.Equal(t, "intron", features[1].Kind)
	assert.Equal(t, 2, features[1].ExonNumber)

	assert.Equal(t, "exon", features[2].Kind)
	assert.Equal(t, 1, features[2].ExonNumber)
}

func TestFeaturesInRangeExcludesNonOverlapping(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "1", 1, [2]int64{100, 200}, [2]int64{300, 400}),
	)

	features := store.FeaturesInRange("1", 100, 150)
	require.Len(t, features, 1)
	assert.Equal(t, "exon", features[0].Kind)
	assert.Equal(t, int64(100), features[0].Start)
}

func TestChromosomesAndCounts(t *testing.T) {
	store := buildStore(
		transcriptWithExons("ENST0001", "GENEA", "2", 1, [2]int64{100, 200}),
		transcriptWithExons("ENST0002", "GENEB", "1", 1, [2]int64{100, 200}),
		transcriptWithExons("ENST0003", "GENEC", "1", 1, [2]int64{300, 400}),
	)

	assert.Equal(t, 3, store.TranscriptCount())
	assert.Equal(t, []string{"1", "2"}, store.Chromosomes())
	assert.Len(t, store.TranscriptsByChrom("1"), 2)
	assert.Equal(t, "GENEA", store.Get("ENST0001").GeneName)
}
