package splice

// Event kinds emitted by the classifier and detectors.
const (
	EventIns            = "ins"
	EventDel            = "del"
	EventITD            = "ITD"
	EventPTD            = "PTD"
	EventFusion         = "fusion"
	EventSkippedExon    = "skipped_exon"
	EventNovelExon      = "novel_exon"
	EventNovelDonor     = "novel_donor"
	EventNovelAcceptor  = "novel_acceptor"
	EventNovelIntron    = "novel_intron"
	EventRetainedIntron = "retained_intron"
)

// Adjacency is the canonical variant record connecting two genomic/contig
// positions. Single-locus events carry one chromosome/gene/transcript
// (duplicated across both sides at output time); fusion events carry two.
type Adjacency struct {
	Kind string

	Chroms  [2]string // Chroms[1] empty for single-locus events
	Breaks  [2]int64
	Orients [2]string // "L"/"R", fusion events only

	Contigs      []string
	ContigBreaks [2]int64

	Genes       []string
	Transcripts []string
	Exons       []int // strand-aware exon numbers; empty for novel exons

	Size     *int64 // nil when not applicable (e.g. fusion)
	NovelSeq string // inserted sequence for ins/ITD, empty otherwise

	// Fusion annotations.
	ExonBound [2]bool
	InFrame   bool
}

// IsFusionKind reports whether the event connects two loci.
func (a *Adjacency) IsFusionKind() bool {
	return a.Kind == EventFusion || a.Kind == EventPTD
}

// sizeOf is a convenience for nullable sizes.
func sizeOf(v int64) *int64 {
	return &v
}
