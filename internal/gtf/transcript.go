// Package gtf provides the gene-model store used for exon mapping.
package gtf

import (
	"fmt"
	"sort"
)

// Exon is a single annotated exon interval (genomic, 1-based, inclusive).
type Exon struct {
	Start int64
	End   int64
}

// Length returns the number of bases in the exon.
func (e Exon) Length() int64 {
	return e.End - e.Start + 1
}

// Transcript represents a specific gene isoform.
// Exons are kept sorted ascending by genomic start regardless of strand;
// exon numbering is strand-aware (exon 1 is the first exon in
// transcription direction).
type Transcript struct {
	ID       string
	GeneName string
	Chrom    string
	Strand   int8 // +1 or -1
	Exons    []Exon
}

// NewTranscript creates a transcript with no exons.
func NewTranscript(id, gene, chrom string, strand int8) *Transcript {
	return &Transcript{ID: id, GeneName: gene, Chrom: chrom, Strand: strand}
}

// AddExon inserts an exon, keeping the exon list sorted by genomic start.
func (t *Transcript) AddExon(e Exon) {
	t.Exons = append(t.Exons, e)
	sort.Slice(t.Exons, func(i, j int) bool {
		return t.Exons[i].Start < t.Exons[j].Start
	})
}

// IsForwardStrand returns true if the transcript is on the forward strand.
func (t *Transcript) IsForwardStrand() bool {
	return t.Strand == 1
}

// NumExons returns the number of exons.
func (t *Transcript) NumExons() int {
	return len(t.Exons)
}

// Length returns the total exonic length of the transcript.
func (t *Transcript) Length() int64 {
	var total int64
	for _, e := range t.Exons {
		total += e.Length()
	}
	return total
}

// TxStart returns the genomic start of the transcript.
func (t *Transcript) TxStart() int64 {
	return t.Exons[0].Start
}

// TxEnd returns the genomic end of the transcript.
func (t *Transcript) TxEnd() int64 {
	return t.Exons[len(t.Exons)-1].End
}

// Exon returns the exon with the given strand-aware number (1-based).
func (t *Transcript) Exon(num int) (Exon, error) {
	if num < 1 || num > len(t.Exons) {
		return Exon{}, fmt.Errorf("exon number out of range: %d (1-%d)", num, len(t.Exons))
	}
	if t.IsForwardStrand() {
		return t.Exons[num-1], nil
	}
	return t.Exons[len(t.Exons)-num], nil
}

// ExonNum converts an exon index (position in the sorted exon list) to the
// strand-aware exon number. For forward-strand transcripts the first exon
// in the list is exon 1; for reverse-strand transcripts the last is.
func (t *Transcript) ExonNum(index int) (int, error) {
	if index < 0 || index >= len(t.Exons) {
		return 0, fmt.Errorf("exon index out of range: %d (0-%d)", index, len(t.Exons)-1)
	}
	if t.IsForwardStrand() {
		return index + 1, nil
	}
	return len(t.Exons) - index, nil
}
