package gtf

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBStore persists the transcript model in a DuckDB database so large
// annotations can be indexed once and reloaded quickly across runs.
type DuckDBStore struct {
	db   *sql.DB
	path string
}

// OpenDuckDB opens (or creates) a DuckDB-backed transcript model at path.
func OpenDuckDB(path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &DuckDBStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *DuckDBStore) Close() error {
	return d.db.Close()
}

// IsDuckDB reports whether a path looks like a DuckDB database file.
func IsDuckDB(path string) bool {
	return strings.HasSuffix(path, ".duckdb") || strings.HasSuffix(path, ".db")
}

// CreateSchema creates the tables for storing transcripts and exons.
func (d *DuckDBStore) CreateSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transcripts (
			id VARCHAR PRIMARY KEY,
			gene_name VARCHAR,
			chrom VARCHAR,
			strand TINYINT
		);

		CREATE TABLE IF NOT EXISTS exons (
			transcript_id VARCHAR,
			start BIGINT,
			end_ BIGINT,
			PRIMARY KEY (transcript_id, start)
		);

		CREATE INDEX IF NOT EXISTS idx_transcripts_gene ON transcripts(gene_name);
		CREATE INDEX IF NOT EXISTS idx_exons_transcript ON exons(transcript_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// InsertTranscript inserts a transcript and its exons.
func (d *DuckDBStore) InsertTranscript(t *Transcript) error {
	_, err := d.db.Exec(`
		INSERT INTO transcripts (id, gene_name, chrom, strand)
		VALUES (?, ?, ?, ?)
	`, t.ID, t.GeneName, t.Chrom, t.Strand)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	for _, e := range t.Exons {
		_, err := d.db.Exec(`
			INSERT INTO exons (transcript_id, start, end_)
			VALUES (?, ?, ?)
		`, t.ID, e.Start, e.End)
		if err != nil {
			return fmt.Errorf("insert exon: %w", err)
		}
	}
	return nil
}

// ImportStore writes every transcript of an in-memory store to the database.
func (d *DuckDBStore) ImportStore(s *Store) error {
	if err := d.CreateSchema(); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, chrom := range s.Chromosomes() {
		for _, t := range s.TranscriptsByChrom(chrom) {
			if err := d.InsertTranscript(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads all transcripts into an in-memory store.
func (d *DuckDBStore) Load() (*Store, error) {
	rows, err := d.db.Query(`
		SELECT id, gene_name, chrom, strand
		FROM transcripts
		ORDER BY chrom, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	store := NewStore()
	var ids []string
	for rows.Next() {
		t := &Transcript{}
		if err := rows.Scan(&t.ID, &t.GeneName, &t.Chrom, &t.Strand); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		t.Chrom = normalizeChrom(t.Chrom)
		store.byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		t := store.byID[id]
		if err := d.loadExons(t); err != nil {
			return nil, err
		}
		store.byChrom[t.Chrom] = append(store.byChrom[t.Chrom], t)
	}
	store.Build()
	return store, nil
}

// loadExons loads the exons of a transcript in genomic order.
func (d *DuckDBStore) loadExons(t *Transcript) error {
	rows, err := d.db.Query(`
		SELECT start, end_
		FROM exons
		WHERE transcript_id = ?
		ORDER BY start
	`, t.ID)
	if err != nil {
		return fmt.Errorf("query exons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Exon
		if err := rows.Scan(&e.Start, &e.End); err != nil {
			return fmt.Errorf("scan exon: %w", err)
		}
		t.Exons = append(t.Exons, e)
	}
	return rows.Err()
}

// TranscriptCount returns the number of stored transcripts.
func (d *DuckDBStore) TranscriptCount() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM transcripts").Scan(&count)
	return count, err
}
