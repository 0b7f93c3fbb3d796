package embeddings

import (
	"context"

	"doc-splitter/internal/splitter"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// TrailSeparator joins heading levels in the context line of an embedding input.
const TrailSeparator = " > "

// Input builds the text embedded for a chunk: its heading trail, a blank line,
// then the chunk with link and image targets restored.
func Input(doc splitter.Doc) string {
	body := splitter.Expand(doc)
	trail := doc.Metadata.Headers.Trail(TrailSeparator)
	if trail == "" {
		return body
	}
	return trail + "\n\n" + body
}
