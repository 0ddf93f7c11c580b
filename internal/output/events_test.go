package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangdi2014/pavfinder/internal/splice"
)

func writeEvents(t *testing.T, adjs ...*splice.Adjacency) []string {
	t.Helper()
	var buf bytes.Buffer
	ew := NewEventWriter(&buf)
	require.NoError(t, ew.WriteHeader())
	for _, adj := range adjs {
		require.NoError(t, ew.Write(adj))
	}
	require.NoError(t, ew.Flush())
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	return lines
}

func sizePtr(v int64) *int64 { return &v }

func TestEventWriterHeader(t *testing.T) {
	lines := writeEvents(t)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "#event_type\tchrom1\tpos1"))
	assert.Len(t, strings.Split(lines[0], "\t"), 18)
}

func TestEventWriterFusionRow(t *testing.T) {
	adj := &splice.Adjacency{
		Kind:         splice.EventFusion,
		Chroms:       [2]string{"1", "2"},
		Breaks:       [2]int64{400, 1001},
		Orients:      [2]string{"L", "R"},
		Contigs:      []string{"ctg1"},
		ContigBreaks: [2]int64{200, 201},
		Genes:        []string{"GENEA", "GENEB"},
		Transcripts:  []string{"ENST0001", "ENST0002"},
		Exons:        []int{2, 1},
		ExonBound:    [2]bool{true, true},
		InFrame:      true,
	}

	lines := writeEvents(t, adj)
	require.Len(t, lines, 2)
	cols := strings.Split(lines[1], "\t")
	require.Len(t, cols, 18)

	assert.Equal(t, []string{
		"fusion",
		"1", "400", "L", "GENEA", "ENST0001", "2",
		"2", "1001", "R", "GENEB", "ENST0002", "1",
		"-", "-", "true", "ctg1", "200-201",
	}, cols)
}

func TestEventWriterSingleLocusRow(t *testing.T) {
	adj := &splice.Adjacency{
		Kind:         splice.EventSkippedExon,
		Chroms:       [2]string{"1"},
		Breaks:       [2]int64{200, 501},
		Contigs:      []string{"ctg1"},
		ContigBreaks: [2]int64{100, 101},
		Genes:        []string{"GENEA"},
		Transcripts:  []string{"ENST0001"},
		Exons:        []int{2, 2},
		Size:         sizePtr(100),
	}

	lines := writeEvents(t, adj)
	cols := strings.Split(lines[1], "\t")
	require.Len(t, cols, 18)

	assert.Equal(t, []string{
		"skipped_exon",
		"1", "200", "-", "GENEA", "ENST0001", "2",
		"1", "501", "-", "GENEA", "ENST0001", "2",
		"100", "-", "-", "ctg1", "100-101",
	}, cols)
}

func TestEventWriterInsertionRow(t *testing.T) {
	adj := &splice.Adjacency{
		Kind:         splice.EventITD,
		Chroms:       [2]string{"1"},
		Breaks:       [2]int64{250, 251},
		Contigs:      []string{"ctg1"},
		ContigBreaks: [2]int64{50, 51},
		Genes:        []string{"GENEA"},
		Transcripts:  []string{"ENST0001"},
		Exons:        []int{2, 2},
		Size:         sizePtr(10),
		NovelSeq:     "GATCGATCGG",
	}

	cols := strings.Split(writeEvents(t, adj)[1], "\t")
	assert.Equal(t, "ITD", cols[0])
	assert.Equal(t, "10", cols[13])
	assert.Equal(t, "GATCGATCGG", cols[14])
	assert.Equal(t, "50-51", cols[17])
}

func TestEventWriterPlaceholders(t *testing.T) {
	// Novel exons carry no annotated exon numbers and no contig breaks.
	adj := &splice.Adjacency{
		Kind:    splice.EventNovelExon,
		Chroms:  [2]string{"1"},
		Breaks:  [2]int64{231, 260},
		Contigs: []string{"ctg1"},
		Genes:   []string{"GENEA"},
		Size:    sizePtr(30),
	}

	cols := strings.Split(writeEvents(t, adj)[1], "\t")
	assert.Equal(t, "-", cols[5], "transcript1")
	assert.Equal(t, "-", cols[6], "exon1")
	assert.Equal(t, "-", cols[12], "exon2")
	assert.Equal(t, "-", cols[17], "contig_breaks")
}
