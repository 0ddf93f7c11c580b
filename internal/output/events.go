// Package output provides tab-delimited writers for detected events and
// contig-to-transcript mappings.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wangdi2014/pavfinder/internal/splice"
)

// none is the placeholder written for empty columns.
const none = "-"

// EventWriter writes splice and structural events in tab-delimited format.
type EventWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewEventWriter creates a new tab-delimited event writer.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#event_type",
			"chrom1",
			"pos1",
			"orient1",
			"gene1",
			"transcript1",
			"exon1",
			"chrom2",
			"pos2",
			"orient2",
			"gene2",
			"transcript2",
			"exon2",
			"size",
			"novel_sequence",
			"in_frame",
			"contigs",
			"contig_breaks",
		},
	}
}

// WriteHeader writes the header line.
func (ew *EventWriter) WriteHeader() error {
	_, err := ew.w.WriteString(strings.Join(ew.columns, "\t") + "\n")
	return err
}

// Write writes a single event. Fusion-type events carry a distinct locus
// on each side; single-locus events repeat the gene and transcript across
// both breakpoint columns.
func (ew *EventWriter) Write(adj *splice.Adjacency) error {
	var values []string
	if adj.IsFusionKind() {
		values = fusionRow(adj)
	} else {
		values = singleLocusRow(adj)
	}
	_, err := ew.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (ew *EventWriter) Flush() error {
	return ew.w.Flush()
}

func fusionRow(adj *splice.Adjacency) []string {
	gene1, gene2 := indexOr(adj.Genes, 0), indexOr(adj.Genes, 1)
	txt1, txt2 := indexOr(adj.Transcripts, 0), indexOr(adj.Transcripts, 1)

	exon1, exon2 := none, none
	if len(adj.Exons) > 0 {
		exon1 = strconv.Itoa(adj.Exons[0])
	}
	if len(adj.Exons) > 1 {
		exon2 = strconv.Itoa(adj.Exons[1])
	}

	return []string{
		adj.Kind,
		adj.Chroms[0],
		strconv.FormatInt(adj.Breaks[0], 10),
		orientOr(adj.Orients[0]),
		gene1,
		txt1,
		exon1,
		adj.Chroms[1],
		strconv.FormatInt(adj.Breaks[1], 10),
		orientOr(adj.Orients[1]),
		gene2,
		txt2,
		exon2,
		sizeColumn(adj),
		seqColumn(adj),
		boolColumn(adj.InFrame),
		strings.Join(adj.Contigs, ","),
		contigBreaksColumn(adj),
	}
}

func singleLocusRow(adj *splice.Adjacency) []string {
	gene := indexOr(adj.Genes, 0)
	txt := indexOr(adj.Transcripts, 0)

	exon1, exon2 := none, none
	if len(adj.Exons) > 0 {
		exon1 = strconv.Itoa(adj.Exons[0])
		exon2 = strconv.Itoa(adj.Exons[len(adj.Exons)-1])
	}

	return []string{
		adj.Kind,
		adj.Chroms[0],
		strconv.FormatInt(adj.Breaks[0], 10),
		none,
		gene,
		txt,
		exon1,
		adj.Chroms[0],
		strconv.FormatInt(adj.Breaks[1], 10),
		none,
		gene,
		txt,
		exon2,
		sizeColumn(adj),
		seqColumn(adj),
		none,
		strings.Join(adj.Contigs, ","),
		contigBreaksColumn(adj),
	}
}

func indexOr(values []string, i int) string {
	if i >= len(values) || values[i] == "" {
		return none
	}
	return values[i]
}

func orientOr(orient string) string {
	if orient == "" {
		return none
	}
	return orient
}

func sizeColumn(adj *splice.Adjacency) string {
	if adj.Size == nil {
		return none
	}
	return strconv.FormatInt(*adj.Size, 10)
}

func seqColumn(adj *splice.Adjacency) string {
	if adj.NovelSeq == "" {
		return none
	}
	return adj.NovelSeq
}

func boolColumn(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func contigBreaksColumn(adj *splice.Adjacency) string {
	if adj.ContigBreaks[0] == 0 && adj.ContigBreaks[1] == 0 {
		return none
	}
	return fmt.Sprintf("%d-%d", adj.ContigBreaks[0], adj.ContigBreaks[1])
}
