package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/wangdi2014/pavfinder/internal/splice"
)

// MappingWriter writes contig-to-transcript mappings in tab-delimited
// format, one row per contig.
type MappingWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewMappingWriter creates a new tab-delimited mapping writer.
func NewMappingWriter(w io.Writer) *MappingWriter {
	return &MappingWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#contig",
			"gene",
			"transcript",
			"coverage",
		},
	}
}

// WriteHeader writes the header line.
func (mw *MappingWriter) WriteHeader() error {
	_, err := mw.w.WriteString(strings.Join(mw.columns, "\t") + "\n")
	return err
}

// Write writes a single mapping. Unmapped contigs carry placeholders in
// the gene and transcript columns.
func (mw *MappingWriter) Write(m *splice.Mapping) error {
	gene := none
	if len(m.Genes) > 0 {
		gene = strings.Join(m.Genes, ",")
	}

	transcript := none
	if len(m.Transcripts) > 0 {
		ids := make([]string, len(m.Transcripts))
		for i, t := range m.Transcripts {
			ids[i] = t.ID
		}
		transcript = strings.Join(ids, ",")
	}

	coverage := none
	if len(m.Coverages) > 0 {
		covs := make([]string, len(m.Coverages))
		for i, c := range m.Coverages {
			covs[i] = fmt.Sprintf("%.2f", c)
		}
		coverage = strings.Join(covs, ",")
	}

	values := []string{m.Contig, gene, transcript, coverage}
	_, err := mw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (mw *MappingWriter) Flush() error {
	return mw.w.Flush()
}

// GeneMappingWriter writes gene-level mappings where contigs sharing a
// gene have been merged into a single row.
type GeneMappingWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewGeneMappingWriter creates a new tab-delimited gene mapping writer.
func NewGeneMappingWriter(w io.Writer) *GeneMappingWriter {
	return &GeneMappingWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#gene",
			"contigs",
			"transcripts",
			"coverage",
		},
	}
}

// WriteHeader writes the header line.
func (gw *GeneMappingWriter) WriteHeader() error {
	_, err := gw.w.WriteString(strings.Join(gw.columns, "\t") + "\n")
	return err
}

// Write writes a single merged mapping.
func (gw *GeneMappingWriter) Write(m *splice.Mapping) error {
	gene := none
	if len(m.Genes) > 0 {
		gene = m.Genes[0]
	}

	transcript := none
	var bestCov string
	if len(m.Transcripts) > 0 {
		// Report the transcript with the highest exonic coverage.
		bestIdx := 0
		for i, c := range m.Coverages {
			if c > m.Coverages[bestIdx] {
				bestIdx = i
			}
		}
		transcript = m.Transcripts[bestIdx].ID
		if len(m.Coverages) > 0 {
			bestCov = fmt.Sprintf("%.2f", m.Coverages[bestIdx])
		}
	}
	if bestCov == "" {
		bestCov = none
	}

	values := []string{gene, m.Contig, transcript, bestCov}
	_, err := gw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (gw *GeneMappingWriter) Flush() error {
	return gw.w.Flush()
}
