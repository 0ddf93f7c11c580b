// Package seq provides sequence access for splice variant detection.
package seq

import "strings"

// Fetcher provides 1-based inclusive coordinate access to named sequences.
// It is the authoritative source for reference and contig bases; callers
// compute strand-aware reverse complements themselves.
type Fetcher interface {
	// Fetch returns the bases of sequence id from start to end (1-based,
	// inclusive). An error is returned for unknown ids or out-of-range
	// coordinates.
	Fetch(id string, start, end int64) (string, error)
	// Seq returns the entire sequence for id.
	Seq(id string) (string, error)
}

var complement = map[byte]byte{
	'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G',
	'a': 't', 't': 'a', 'g': 'c', 'c': 'g',
	'N': 'N', 'n': 'n',
}

// ReverseComplement returns the reverse complement of a DNA sequence.
// Unrecognized characters are passed through unchanged.
func ReverseComplement(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := len(s) - 1; i >= 0; i-- {
		if c, ok := complement[s[i]]; ok {
			b.WriteByte(c)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
