// Package splice implements exon mapping and splice/structural event
// classification from contig alignment blocks.
package splice

import (
	"fmt"

	"github.com/wangdi2014/pavfinder/internal/align"
	"github.com/wangdi2014/pavfinder/internal/gtf"
)

// Match codes compare an alignment block against an exon. The code has two
// characters: the first compares starts, the second compares ends, each
// independently '=' (equal), '<' (block coordinate smaller) or '>' (block
// coordinate greater). An empty code means the intervals do not overlap.

// MatchExon classifies the positional relationship between an alignment
// block and an exon. Reversed coordinates are a contract violation.
func MatchExon(block align.Block, exon gtf.Exon) (string, error) {
	if block.Start > block.End {
		return "", fmt.Errorf("reversed block coordinates: %d-%d", block.Start, block.End)
	}
	if exon.Start > exon.End {
		return "", fmt.Errorf("reversed exon coordinates: %d-%d", exon.Start, exon.End)
	}

	if min(block.End, exon.End)-max(block.Start, exon.Start) <= 0 {
		return "", nil
	}

	code := make([]byte, 2)
	for i, pair := range [2][2]int64{{block.Start, exon.Start}, {block.End, exon.End}} {
		switch {
		case pair[0] == pair[1]:
			code[i] = '='
		case pair[0] > pair[1]:
			code[i] = '>'
		default:
			code[i] = '<'
		}
	}
	return string(code), nil
}
