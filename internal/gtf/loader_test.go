package gtf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGTF = `##description: test annotation
chr1	HAVANA	gene	100	600	.	+	.	gene_id "ENSG0001"; gene_name "GENEA";
chr1	HAVANA	transcript	100	600	.	+	.	gene_id "ENSG0001"; transcript_id "ENST0001.3"; gene_name "GENEA";
chr1	HAVANA	exon	100	200	.	+	.	gene_id "ENSG0001"; transcript_id "ENST0001.3"; gene_name "GENEA"; exon_number 1;
chr1	HAVANA	exon	300	400	.	+	.	gene_id "ENSG0001"; transcript_id "ENST0001.3"; gene_name "GENEA"; exon_number 2;
chr1	HAVANA	exon	500	600	.	+	.	gene_id "ENSG0001"; transcript_id "ENST0001.3"; gene_name "GENEA"; exon_number 3;
chr2	HAVANA	exon	1000	1100	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002.1"; gene_name "GENEB";
chr2	HAVANA	exon	1300	1400	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002.1"; gene_name "GENEB";
chr2	HAVANA	CDS	1000	1100	.	-	.	gene_id "ENSG0002"; transcript_id "ENST0002.1"; gene_name "GENEB";
`

func TestParseGTF(t *testing.T) {
	transcripts, err := parseGTF(strings.NewReader(sampleGTF))
	require.NoError(t, err)
	require.Len(t, transcripts, 2)

	txt, ok := transcripts["ENST0001"]
	require.True(t, ok, "version suffix should be stripped")
	assert.Equal(t, "GENEA", txt.GeneName)
	assert.Equal(t, "1", txt.Chrom)
	assert.Equal(t, int8(1), txt.Strand)
	require.Len(t, txt.Exons, 3)
	assert.Equal(t, Exon{Start: 100, End: 200}, txt.Exons[0])
	assert.Equal(t, Exon{Start: 500, End: 600}, txt.Exons[2])

	txt, ok = transcripts["ENST0002"]
	require.True(t, ok)
	assert.Equal(t, "2", txt.Chrom)
	assert.Equal(t, int8(-1), txt.Strand)
	assert.Len(t, txt.Exons, 2, "CDS features should be ignored")
}

func TestParseGTFSkipsMalformedLines(t *testing.T) {
	input := "not a gtf line\nchr1\texon\n" +
		"chr1\tHAVANA\texon\t100\t200\t.\t+\t.\ttranscript_id \"ENST0001\"; gene_name \"GENEA\";\n" +
		"chr1\tHAVANA\texon\tNaN\t200\t.\t+\t.\ttranscript_id \"ENST0002\";\n" +
		"chr1\tHAVANA\texon\t300\t400\t.\t+\t.\tgene_id \"ENSG0001\";\n"

	transcripts, err := parseGTF(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Contains(t, transcripts, "ENST0001")
}

func TestLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gtf")
	require.NoError(t, os.WriteFile(path, []byte(sampleGTF), 0o644))

	store, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 2, store.TranscriptCount())
	require.NotNil(t, store.Get("ENST0001"))
	assert.Len(t, store.Overlapping("1", 150, 350), 1)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader("/nonexistent/path.gtf").Load()
	assert.Error(t, err)
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "quoted values",
			input: `gene_id "ENSG0001"; transcript_id "ENST0001"; gene_name "GENEA";`,
			want: map[string]string{
				"gene_id":       "ENSG0001",
				"transcript_id": "ENST0001",
				"gene_name":     "GENEA",
			},
		},
		{
			name:  "unquoted value",
			input: `exon_number 2; transcript_id "ENST0001"`,
			want: map[string]string{
				"exon_number":   "2",
				"transcript_id": "ENST0001",
			},
		},
		{
			name:  "empty",
			input: "",
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAttributes(tt.input))
		})
	}
}

func TestStripVersion(t *testing.T) {
	assert.Equal(t, "ENST00000456328", stripVersion("ENST00000456328.2"))
	assert.Equal(t, "ENST00000456328", stripVersion("ENST00000456328"))
}

func TestNormalizeChrom(t *testing.T) {
	assert.Equal(t, "1", normalizeChrom("chr1"))
	assert.Equal(t, "X", normalizeChrom("chrX"))
	assert.Equal(t, "1", normalizeChrom("1"))
}

func TestParseStrand(t *testing.T) {
	assert.Equal(t, int8(1), parseStrand("+"))
	assert.Equal(t, int8(-1), parseStrand("-"))
	assert.Equal(t, int8(1), parseStrand("."))
}
