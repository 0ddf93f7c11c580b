package seq

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Fasta is an in-memory FASTA store implementing Fetcher.
type Fasta struct {
	sequences map[string]string
	names     []string
}

// NewFasta creates an empty FASTA store.
func NewFasta() *Fasta {
	return &Fasta{sequences: make(map[string]string)}
}

// LoadFasta reads a FASTA file (optionally gzipped) into memory.
func LoadFasta(path string) (*Fasta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	fa := NewFasta()
	if err := fa.parse(reader); err != nil {
		return nil, err
	}
	return fa, nil
}

// parse reads FASTA records from reader.
func (fa *Fasta) parse(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024) // 10MB max line

	var currentID string
	var currentSeq strings.Builder

	flush := func() {
		if currentID != "" && currentSeq.Len() > 0 {
			fa.Add(currentID, currentSeq.String())
		}
		currentSeq.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			currentID = parseHeader(line)
		} else {
			currentSeq.WriteString(strings.TrimSpace(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}
	return nil
}

// parseHeader extracts the sequence name from a FASTA header line.
// Everything up to the first whitespace is the name.
func parseHeader(header string) string {
	header = strings.TrimPrefix(header, ">")
	if idx := strings.IndexAny(header, " \t"); idx != -1 {
		return header[:idx]
	}
	return header
}

// Add stores a sequence under the given name.
func (fa *Fasta) Add(id, sequence string) {
	if _, ok := fa.sequences[id]; !ok {
		fa.names = append(fa.names, id)
	}
	fa.sequences[id] = sequence
}

// Fetch returns bases start..end (1-based, inclusive) of sequence id.
func (fa *Fasta) Fetch(id string, start, end int64) (string, error) {
	s, ok := fa.sequences[id]
	if !ok {
		return "", fmt.Errorf("sequence %q not found", id)
	}
	if start < 1 || end > int64(len(s)) || start > end {
		return "", fmt.Errorf("coordinates %d-%d out of range for %q (length %d)", start, end, id, len(s))
	}
	return s[start-1 : end], nil
}

// Seq returns the full sequence for id.
func (fa *Fasta) Seq(id string) (string, error) {
	s, ok := fa.sequences[id]
	if !ok {
		return "", fmt.Errorf("sequence %q not found", id)
	}
	return s, nil
}

// Len returns the length of sequence id, or 0 if unknown.
func (fa *Fasta) Len(id string) int64 {
	return int64(len(fa.sequences[id]))
}

// Names returns sequence names in load order.
func (fa *Fasta) Names() []string {
	return fa.names
}
