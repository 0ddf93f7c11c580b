package align

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadPSL reads contig-to-genome alignments from a PSL file (optionally
// gzipped) and groups them by contig name, preserving file order within
// each contig. Chimeric contigs appear as multiple alignments.
func ReadPSL(path string) (map[string][]*Alignment, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open PSL file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return parsePSL(reader)
}

// parsePSL parses PSL records. The second return value lists contig names
// in first-seen order.
func parsePSL(reader io.Reader) (map[string][]*Alignment, []string, error) {
	byContig := make(map[string][]*Alignment)
	var order []string

	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\n")
		if line == "" || !startsWithDigit(line) {
			continue // header lines
		}

		aln, err := parsePSLLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("PSL line %d: %w", lineNum, err)
		}
		if _, seen := byContig[aln.Query]; !seen {
			order = append(order, aln.Query)
		}
		byContig[aln.Query] = append(byContig[aln.Query], aln)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan PSL: %w", err)
	}
	return byContig, order, nil
}

func startsWithDigit(line string) bool {
	return line[0] >= '0' && line[0] <= '9'
}

// parsePSLLine converts one PSL record to an Alignment with 1-based
// inclusive coordinates. For minus-strand records the per-block query
// coordinates are converted from reverse-complement space back to the
// original contig and stored descending within each block.
func parsePSLLine(line string) (*Alignment, error) {
	fields := strings.Fields(line)
	if len(fields) < 21 {
		return nil, fmt.Errorf("expected 21 fields, got %d", len(fields))
	}

	strand := int8(1)
	if strings.HasPrefix(fields[8], "-") {
		strand = -1
	}

	qName := fields[9]
	qSize, err := strconv.ParseInt(fields[10], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse qSize: %w", err)
	}
	qStart, _ := strconv.ParseInt(fields[11], 10, 64)
	qEnd, _ := strconv.ParseInt(fields[12], 10, 64)
	tName := fields[13]
	tStart, _ := strconv.ParseInt(fields[15], 10, 64)
	tEnd, _ := strconv.ParseInt(fields[16], 10, 64)
	blockCount, _ := strconv.Atoi(fields[17])

	blockSizes, err := parseCommaInts(fields[18])
	if err != nil {
		return nil, fmt.Errorf("parse blockSizes: %w", err)
	}
	qStarts, err := parseCommaInts(fields[19])
	if err != nil {
		return nil, fmt.Errorf("parse qStarts: %w", err)
	}
	tStarts, err := parseCommaInts(fields[20])
	if err != nil {
		return nil, fmt.Errorf("parse tStarts: %w", err)
	}
	if len(blockSizes) != blockCount || len(qStarts) != blockCount || len(tStarts) != blockCount {
		return nil, fmt.Errorf("block list lengths do not match blockCount %d", blockCount)
	}

	aln := &Alignment{
		Query:  qName,
		Target: tName,
		Strand: strand,
		Tstart: tStart + 1,
		Tend:   tEnd,
		Qstart: qStart + 1,
		Qend:   qEnd,
		Qlen:   qSize,
	}

	for i := 0; i < blockCount; i++ {
		size := blockSizes[i]
		aln.Blocks = append(aln.Blocks, Block{
			Start: tStarts[i] + 1,
			End:   tStarts[i] + size,
		})
		if strand == 1 {
			aln.QueryBlocks = append(aln.QueryBlocks, Block{
				Start: qStarts[i] + 1,
				End:   qStarts[i] + size,
			})
		} else {
			// PSL minus-strand qStarts are in reverse-complement
			// coordinates; map back to the forward contig.
			fwdStart := qSize - qStarts[i] - size
			aln.QueryBlocks = append(aln.QueryBlocks, Block{
				Start: fwdStart + size,
				End:   fwdStart + 1,
			})
		}
	}

	return aln, nil
}

func parseCommaInts(s string) ([]int64, error) {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
