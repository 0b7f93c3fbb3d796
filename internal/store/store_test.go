package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-splitter/internal/embeddings"
	"doc-splitter/internal/splitter"
	"doc-splitter/internal/tokenizer"
)

const sample = "# Guide\nIntro with a [link](https://example.com).\n\n## Install\n![logo](logo.png)\nRun the installer and follow the prompts until it finishes.\n"

func splitSample(t *testing.T, limit int) []splitter.Doc {
	t.Helper()
	docs, err := splitter.New(tokenizer.Approx{}, splitter.Options{}).Split(sample, limit)
	require.NoError(t, err)
	return docs
}

func TestChunksFromDocs(t *testing.T) {
	docs := splitSample(t, 20)
	require.Greater(t, len(docs), 1)

	chunks := ChunksFromDocs(docs)
	require.Len(t, chunks, len(docs))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, docs[i].Text, c.Text)
		assert.Equal(t, docs[i].Metadata.Tokens, c.TokenCount)
		assert.Equal(t, docs[i].Span.Start, c.Start)
		assert.Equal(t, docs[i].Span.End, c.End)
		assert.Equal(t, docs[i], c.Doc(), "chunk %d should convert back unchanged", i)
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(sample), chunks[len(chunks)-1].End)
}

func TestChunksFromDocsEmpty(t *testing.T) {
	assert.Empty(t, ChunksFromDocs(nil))
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "splitter.db"))
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}
	s, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "guide.md", 20)
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "guide.md", got.Filename)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 20, got.TokenLimit)

	_, err = s.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.ErrorIs(t, s.UpdateDocumentStatus(ctx, uuid.New(), StatusReady), ErrDocumentNotFound)

	empty, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	docs := splitSample(t, 20)
	_, err = s.SaveChunks(ctx, doc.ID, ChunksFromDocs(docs))
	require.NoError(t, err)
	// Saving again replaces rather than appends.
	saved, err := s.SaveChunks(ctx, doc.ID, ChunksFromDocs(docs))
	require.NoError(t, err)
	require.Len(t, saved, len(docs))

	listed, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, listed)
	for i, c := range listed {
		assert.Equal(t, docs[i], c.Doc())
	}

	require.NoError(t, s.SaveEmbeddings(ctx, []Embedding{
		{ChunkID: listed[0].ID, Vector: embeddings.Vector{0.1, 0.2}, Model: "test"},
	}))
	// Re-embedding the same chunk overwrites.
	require.NoError(t, s.SaveEmbeddings(ctx, []Embedding{
		{ChunkID: listed[0].ID, Vector: embeddings.Vector{0.3}, Model: "test"},
	}))

	require.NoError(t, s.UpdateDocumentStatus(ctx, doc.ID, StatusReady))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)
}
