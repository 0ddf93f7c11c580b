package gtf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Loader loads transcript models from GTF annotation files.
type Loader struct {
	path string
}

// NewLoader creates a GTF loader for the given path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses the GTF file and returns a populated store.
func (l *Loader) Load() (*Store, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	transcripts, err := parseGTF(reader)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	for _, t := range transcripts {
		store.AddTranscript(t)
	}
	store.Build()
	return store, nil
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// parseGTF builds transcripts from the exon features of a GTF stream.
func parseGTF(reader io.Reader) (map[string]*Transcript, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	transcripts := make(map[string]*Transcript)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			continue // skip malformed lines
		}
		if feat.featureType != "exon" {
			continue
		}

		transcriptID := stripVersion(feat.attributes["transcript_id"])
		if transcriptID == "" {
			continue
		}

		t, ok := transcripts[transcriptID]
		if !ok {
			t = NewTranscript(transcriptID, feat.attributes["gene_name"], feat.chrom, parseStrand(feat.strand))
			transcripts[transcriptID] = t
		}
		t.AddExon(Exon{Start: feat.start, End: feat.end})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}
	return transcripts, nil
}

// parseLine parses a single GTF line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	return &gtfFeature{
		chrom:       normalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses the GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}
		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")
		attrs[key] = value
	}
	return attrs
}

// parseStrand converts a strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

// normalizeChrom normalizes chromosome names by removing the "chr" prefix.
// This keeps GENCODE-style names consistent with alignment targets.
func normalizeChrom(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom[3:]
	}
	return chrom
}
