// Package align provides the contig alignment model and local
// self-alignment used by duplication detection.
package align

// Block is a contiguous interval. Genomic blocks always have Start <= End;
// query (contig) blocks on reverse-strand alignments are stored with
// Start > End so block order follows the target while coordinates follow
// the contig.
type Block struct {
	Start int64
	End   int64
}

// Alignment is a single contig-to-genome alignment: an ordered sequence of
// aligned blocks with parallel genomic and contig coordinates. A chimeric
// (split) contig alignment is represented as an ordered slice of Alignments.
type Alignment struct {
	Query  string // contig name
	Target string // chromosome
	Strand int8   // +1 or -1

	Tstart int64 // genomic span (1-based, inclusive)
	Tend   int64
	Qstart int64 // contig span (1-based, inclusive)
	Qend   int64
	Qlen   int64

	Blocks      []Block // genomic blocks, ascending
	QueryBlocks []Block // contig blocks, parallel to Blocks
}

// IsForwardStrand returns true for plus-strand alignments.
func (a *Alignment) IsForwardStrand() bool {
	return a.Strand == 1
}

// StrandString returns "+" or "-".
func (a *Alignment) StrandString() string {
	if a.Strand == -1 {
		return "-"
	}
	return "+"
}
