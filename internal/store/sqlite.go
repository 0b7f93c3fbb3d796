package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file store for local runs; it needs no database server.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		token_limit INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL,
		text TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		headers TEXT NOT NULL,
		urls TEXT NOT NULL,
		images TEXT NOT NULL,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS chunks_document_ord_idx ON chunks(document_id, ord);`,
	`CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		vector TEXT NOT NULL,
		model TEXT NOT NULL
	);`,
}

// NewSQLite opens (creating if needed) the database file at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, filename string, tokenLimit int) (Document, error) {
	doc := Document{
		ID:         uuid.New(),
		Filename:   filename,
		Status:     StatusProcessing,
		TokenLimit: tokenLimit,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(id, filename, status, token_limit, created_at) VALUES(?,?,?,?,?)`,
		doc.ID.String(), doc.Filename, string(doc.Status), doc.TokenLimit, doc.CreatedAt.UnixNano())
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var (
		doc     Document
		rawID   string
		status  string
		created int64
	)
	row := s.db.QueryRowContext(ctx, `SELECT id, filename, status, token_limit, created_at FROM documents WHERE id=?`, id.String())
	if err := row.Scan(&rawID, &doc.Filename, &status, &doc.TokenLimit, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	doc.ID = id
	doc.Status = DocumentStatus(status)
	doc.CreatedAt = time.Unix(0, created).UTC()
	return doc, nil
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=? WHERE id=?`, string(status), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id=?`, docID.String()); err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		headers, urls, images, err := encodeChunkMetadata(c)
		if err != nil {
			return nil, err
		}
		c.ID = uuid.New()
		c.DocumentID = docID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, ord, text, token_count, headers, urls, images, span_start, span_end)
			VALUES(?,?,?,?,?,?,?,?,?,?)`,
			c.ID.String(), docID.String(), c.Index, c.Text, c.TokenCount, headers, urls, images, c.Start, c.End)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ListChunks(ctx context.Context, docID uuid.UUID) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ord, text, token_count, headers, urls, images, span_start, span_end
		FROM chunks WHERE document_id=? ORDER BY ord`, docID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Chunk{}
	for rows.Next() {
		var (
			c                     Chunk
			rawID                 string
			headers, urls, images string
		)
		if err := rows.Scan(&rawID, &c.Index, &c.Text, &c.TokenCount, &headers, &urls, &images, &c.Start, &c.End); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &c.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of chunk %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(urls), &c.URLs); err != nil {
			return nil, fmt.Errorf("decode urls of chunk %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(images), &c.Images); err != nil {
			return nil, fmt.Errorf("decode images of chunk %s: %w", c.ID, err)
		}
		c.DocumentID = docID
		c.URLs = nonNil(c.URLs)
		c.Images = nonNil(c.Images)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveEmbeddings(ctx context.Context, embs []Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, emb := range embs {
		vec, err := json.Marshal(emb.Vector)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO embeddings(chunk_id, vector, model) VALUES(?,?,?)
			ON CONFLICT (chunk_id) DO UPDATE SET vector=excluded.vector, model=excluded.model`,
			emb.ChunkID.String(), string(vec), emb.Model)
		if err != nil {
			return fmt.Errorf("save embedding for chunk %s: %w", emb.ChunkID, err)
		}
	}
	return tx.Commit()
}

func encodeChunkMetadata(c Chunk) (headers, urls, images string, err error) {
	h, err := json.Marshal(c.Headers)
	if err != nil {
		return "", "", "", fmt.Errorf("encode headers: %w", err)
	}
	u, err := json.Marshal(nonNil(c.URLs))
	if err != nil {
		return "", "", "", err
	}
	i, err := json.Marshal(nonNil(c.Images))
	if err != nil {
		return "", "", "", err
	}
	return string(h), string(u), string(i), nil
}
