package align

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/biogo/align"
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

// LocalAlignment is one local alignment of a sequence against itself.
// Coordinates are 1-based inclusive on the original sequence.
type LocalAlignment struct {
	QueryStart      int64
	QueryEnd        int64
	TargetStart     int64
	TargetEnd       int64
	PercentIdentity float64
	AlignLen        int64
}

// SelfAligner computes local alignments of a sequence against itself.
// Used by the ITD detector to find imperfect duplications.
type SelfAligner interface {
	Align(name, sequence string) ([]LocalAlignment, error)
}

// BlastnAligner shells out to blastn for self-alignment. Each invocation
// writes the sequence to a scratch FASTA file and reads tabular output
// (-outfmt 6); both files are uniquely named and removed on every exit
// path unless KeepFiles is set.
type BlastnAligner struct {
	Binary    string // blastn binary, defaults to "blastn"
	Dir       string // scratch directory, defaults to os.TempDir()
	KeepFiles bool
}

// Available reports whether the blastn binary can be found in PATH.
func (b *BlastnAligner) Available() bool {
	_, err := exec.LookPath(b.binary())
	return err == nil
}

func (b *BlastnAligner) binary() string {
	if b.Binary != "" {
		return b.Binary
	}
	return "blastn"
}

// Align runs blastn of the sequence against itself and returns all local
// alignments, including the trivial full-length self match.
func (b *BlastnAligner) Align(name, sequence string) ([]LocalAlignment, error) {
	seqFile, err := os.CreateTemp(b.Dir, "pavfinder_seq_*.fa")
	if err != nil {
		return nil, fmt.Errorf("create scratch FASTA: %w", err)
	}
	seqPath := seqFile.Name()
	if !b.KeepFiles {
		defer os.Remove(seqPath)
	}

	if _, err := fmt.Fprintf(seqFile, ">%s\n%s\n", name, sequence); err != nil {
		seqFile.Close()
		return nil, fmt.Errorf("write scratch FASTA: %w", err)
	}
	if err := seqFile.Close(); err != nil {
		return nil, fmt.Errorf("close scratch FASTA: %w", err)
	}

	outPath := strings.TrimSuffix(seqPath, ".fa") + ".tsv"
	if !b.KeepFiles {
		defer os.Remove(outPath)
	}

	cmd := exec.Command(b.binary(),
		"-query", seqPath,
		"-subject", seqPath,
		"-outfmt", "6",
		"-out", outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", b.binary(), err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("open blastn output: %w", err)
	}
	defer f.Close()

	return parseBlastTab(f)
}

// parseBlastTab parses tabular blastn output (-outfmt 6). Lines with an
// unexpected column count are skipped.
func parseBlastTab(r io.Reader) ([]LocalAlignment, error) {
	const numFields = 12 // query target pid alen mism gaps qstart qend tstart tend evalue bits

	var alns []LocalAlignment
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cols := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
		if len(cols) != numFields {
			continue
		}
		pid, err := strconv.ParseFloat(cols[2], 64)
		if err != nil {
			continue
		}
		alen, err := strconv.ParseInt(cols[3], 10, 64)
		if err != nil {
			continue
		}
		qstart, _ := strconv.ParseInt(cols[6], 10, 64)
		qend, _ := strconv.ParseInt(cols[7], 10, 64)
		tstart, _ := strconv.ParseInt(cols[8], 10, 64)
		tend, _ := strconv.ParseInt(cols[9], 10, 64)

		alns = append(alns, LocalAlignment{
			QueryStart:      qstart,
			QueryEnd:        qend,
			TargetStart:     tstart,
			TargetEnd:       tend,
			PercentIdentity: pid,
			AlignLen:        alen,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan blastn output: %w", err)
	}
	return alns, nil
}

// SWAligner is an in-process Smith-Waterman self-aligner used when blastn
// is not installed. Off-diagonal self matches are found by splitting the
// sequence at a series of points and locally aligning the left part
// against the right part, so reported pairs always have QueryStart <
// TargetStart.
type SWAligner struct {
	Match    int // match score, default 2
	Mismatch int // mismatch score, default -1
	Gap      int // gap score, default -1
	Step     int // distance between split points, default 50
}

func (s *SWAligner) scores() (match, mismatch, gap int) {
	match, mismatch, gap = s.Match, s.Mismatch, s.Gap
	if match == 0 {
		match = 2
	}
	if mismatch == 0 {
		mismatch = -1
	}
	if gap == 0 {
		gap = -1
	}
	return match, mismatch, gap
}

func (s *SWAligner) step() int {
	if s.Step > 0 {
		return s.Step
	}
	return 50
}

// Align locally aligns the left and right parts of the sequence around
// each split point and maps the best hits back to whole-sequence
// coordinates.
func (s *SWAligner) Align(name, sequence string) ([]LocalAlignment, error) {
	n := len(sequence)
	if n < 2 {
		return nil, nil
	}

	sw := makeTable(s.scores())

	splits := []int{n / 2}
	for p := s.step(); p < n; p += s.step() {
		if p != n/2 {
			splits = append(splits, p)
		}
	}

	seen := make(map[[4]int64]bool)
	var alns []LocalAlignment
	for _, split := range splits {
		if split <= 0 || split >= n {
			continue
		}
		la, ok, err := s.alignSplit(sw, sequence, split)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		key := [4]int64{la.QueryStart, la.QueryEnd, la.TargetStart, la.TargetEnd}
		if seen[key] {
			continue
		}
		seen[key] = true
		alns = append(alns, la)
	}
	return alns, nil
}

// alignSplit aligns sequence[:split] against sequence[split:].
func (s *SWAligner) alignSplit(sw align.SW, sequence string, split int) (LocalAlignment, bool, error) {
	left := linear.NewSeq("l", alphabet.BytesToLetters([]byte(sequence[:split])), alphabet.DNAgapped)
	right := linear.NewSeq("r", alphabet.BytesToLetters([]byte(sequence[split:])), alphabet.DNAgapped)

	aln, err := sw.Align(left, right)
	if err != nil {
		return LocalAlignment{}, false, fmt.Errorf("smith-waterman: %w", err)
	}
	if len(aln) == 0 {
		return LocalAlignment{}, false, nil
	}

	formatted := align.Format(left, right, aln, '-')
	gappedL := fmt.Sprintf("%s", formatted[0])
	gappedR := fmt.Sprintf("%s", formatted[1])

	var matches int64
	cols := int64(len(gappedL))
	for i := 0; i < len(gappedL) && i < len(gappedR); i++ {
		if gappedL[i] == gappedR[i] && gappedL[i] != '-' {
			matches++
		}
	}
	if cols == 0 {
		return LocalAlignment{}, false, nil
	}

	first := aln[0].Features()
	last := aln[len(aln)-1].Features()

	return LocalAlignment{
		QueryStart:      int64(first[0].Start()) + 1,
		QueryEnd:        int64(last[0].End()),
		TargetStart:     int64(split) + int64(first[1].Start()) + 1,
		TargetEnd:       int64(split) + int64(last[1].End()),
		PercentIdentity: 100 * float64(matches) / float64(cols),
		AlignLen:        cols,
	}, true, nil
}

// makeTable builds a Smith-Waterman scoring table over the gapped DNA
// alphabet, following the usual biogo construction.
func makeTable(match, mismatch, gap int) align.SW {
	alpha := alphabet.DNAgapped
	sw := make(align.SW, alpha.Len())
	for i := range sw {
		row := make([]int, alpha.Len())
		for j := range row {
			row[j] = mismatch
		}
		row[i] = match
		sw[i] = row
	}
	for i := range sw {
		sw[0][i] = gap
		sw[i][0] = gap
	}
	return sw
}

// DefaultSelfAligner returns the blastn aligner when available, falling
// back to the in-process Smith-Waterman aligner.
func DefaultSelfAligner(scratchDir string) SelfAligner {
	b := &BlastnAligner{Dir: scratchDir}
	if b.Available() {
		return b
	}
	return &SWAligner{}
}

// ScratchDir resolves the scratch directory, preferring dir when set.
func ScratchDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return filepath.Clean(dir)
}
