package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// migrationLockID serialises schema setup across the gateway and the workers.
const migrationLockID = 73310911

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		token_limit INT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
		ord INT NOT NULL,
		text TEXT NOT NULL,
		token_count INT NOT NULL,
		headers JSONB NOT NULL DEFAULT '{}',
		urls TEXT[] NOT NULL DEFAULT '{}',
		images TEXT[] NOT NULL DEFAULT '{}',
		span_start INT NOT NULL,
		span_end INT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS chunks_document_ord_idx ON chunks(document_id, ord);`,
	`CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id UUID PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		vector REAL[] NOT NULL,
		model TEXT NOT NULL
	);`,
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is running migrations; give it a moment and carry on.
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, filename string, tokenLimit int) (Document, error) {
	doc := Document{
		ID:         uuid.New(),
		Filename:   filename,
		Status:     StatusProcessing,
		TokenLimit: tokenLimit,
		CreatedAt:  time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(id, filename, status, token_limit, created_at) VALUES($1,$2,$3,$4,$5)`,
		doc.ID, doc.Filename, doc.Status, doc.TokenLimit, doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var doc Document
	row := s.db.QueryRowContext(ctx, `SELECT id, filename, status, token_limit, created_at FROM documents WHERE id=$1`, id)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Status, &doc.TokenLimit, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Redelivered split tasks must not duplicate chunks.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id=$1`, docID); err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		headers, err := json.Marshal(c.Headers)
		if err != nil {
			return nil, fmt.Errorf("encode headers: %w", err)
		}
		c.ID = uuid.New()
		c.DocumentID = docID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, ord, text, token_count, headers, urls, images, span_start, span_end)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			c.ID, docID, c.Index, c.Text, c.TokenCount, headers,
			pq.Array(nonNil(c.URLs)), pq.Array(nonNil(c.Images)), c.Start, c.End)
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

func (s *PostgresStore) ListChunks(ctx context.Context, docID uuid.UUID) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ord, text, token_count, headers, urls, images, span_start, span_end
		FROM chunks WHERE document_id=$1 ORDER BY ord`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Chunk{}
	for rows.Next() {
		var (
			c       Chunk
			headers []byte
		)
		if err := rows.Scan(&c.ID, &c.Index, &c.Text, &c.TokenCount, &headers,
			pq.Array(&c.URLs), pq.Array(&c.Images), &c.Start, &c.End); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(headers, &c.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of chunk %s: %w", c.ID, err)
		}
		c.DocumentID = docID
		c.URLs = nonNil(c.URLs)
		c.Images = nonNil(c.Images)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveEmbeddings(ctx context.Context, embs []Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, emb := range embs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings(chunk_id, vector, model)
			VALUES($1,$2,$3)
			ON CONFLICT (chunk_id) DO UPDATE SET vector=excluded.vector, model=excluded.model`,
			emb.ChunkID, pq.Array([]float32(emb.Vector)), emb.Model)
		if err != nil {
			return fmt.Errorf("save embedding for chunk %s: %w", emb.ChunkID, err)
		}
	}
	return tx.Commit()
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
