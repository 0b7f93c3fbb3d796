package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"doc-splitter/internal/embeddings"
	"doc-splitter/internal/splitter"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusSplit      DocumentStatus = "split"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

type Document struct {
	ID         uuid.UUID      `json:"id"`
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	TokenLimit int            `json:"token_limit"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Chunk is a persisted splitter.Doc. Text keeps its link and image placeholders;
// Start and End are byte offsets into the uploaded text.
type Chunk struct {
	ID         uuid.UUID         `json:"id"`
	DocumentID uuid.UUID         `json:"document_id"`
	Index      int               `json:"index"`
	Text       string            `json:"text"`
	TokenCount int               `json:"token_count"`
	Headers    splitter.Headings `json:"headers"`
	URLs       []string          `json:"urls"`
	Images     []string          `json:"images"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
}

// Doc converts the chunk back into splitter output form.
func (c Chunk) Doc() splitter.Doc {
	return splitter.Doc{
		Text: c.Text,
		Metadata: splitter.Metadata{
			Tokens:  c.TokenCount,
			Headers: c.Headers,
			URLs:    c.URLs,
			Images:  c.Images,
		},
		Span: splitter.Span{Start: c.Start, End: c.End},
	}
}

// ChunksFromDocs numbers docs in order. IDs are assigned by SaveChunks.
func ChunksFromDocs(docs []splitter.Doc) []Chunk {
	out := make([]Chunk, len(docs))
	for i, d := range docs {
		out[i] = Chunk{
			Index:      i,
			Text:       d.Text,
			TokenCount: d.Metadata.Tokens,
			Headers:    d.Metadata.Headers,
			URLs:       d.Metadata.URLs,
			Images:     d.Metadata.Images,
			Start:      d.Span.Start,
			End:        d.Span.End,
		}
	}
	return out
}

type Embedding struct {
	ChunkID uuid.UUID
	Vector  embeddings.Vector
	Model   string
}

// Store defines the persistence contract for documents, their chunks and chunk embeddings.
type Store interface {
	CreateDocument(ctx context.Context, filename string, tokenLimit int) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error
	// SaveChunks replaces any chunks already stored for the document.
	SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error)
	ListChunks(ctx context.Context, docID uuid.UUID) ([]Chunk, error)
	SaveEmbeddings(ctx context.Context, embs []Embedding) error
}
