package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doc-splitter/internal/app"
	"doc-splitter/internal/embeddings"
	"doc-splitter/internal/httputil"
	"doc-splitter/internal/queue"
	"doc-splitter/internal/store"
)

// embedBatchSize bounds the number of chunks sent per embeddings request.
const embedBatchSize = 64

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	if deps.Embedder == nil {
		deps.Log.Error("embedder worker requires OPENAI_API_KEY")
		os.Exit(1)
	}
	deps.Log.Info("embedder worker starting", "model", deps.Config.EmbeddingModel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeEmbed, func(ctx context.Context, task queue.Task) error {
			var payload queue.EmbedPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleEmbed(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, "embedder", deps.Config.Port)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("embedder service stopped", "err", err)
	}
}

func handleEmbed(ctx context.Context, deps app.Deps, payload queue.EmbedPayload) error {
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return err
	}
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	chunks, err := deps.Store.ListChunks(ctx, docID)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = embeddingInput(doc.Filename, c)
		}
		vectors, err := deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		embs := make([]store.Embedding, len(batch))
		for i, c := range batch {
			embs[i] = store.Embedding{
				ChunkID: c.ID,
				Vector:  vectors[i],
				Model:   deps.Config.EmbeddingModel,
			}
		}
		if err := deps.Store.SaveEmbeddings(ctx, embs); err != nil {
			return err
		}
	}

	deps.Log.Info("document embedded", "document_id", docID, "chunks", len(chunks))
	return deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusReady)
}

// embeddingInput prefixes the chunk with its document name so similar sections
// of different documents stay distinguishable.
func embeddingInput(filename string, c store.Chunk) string {
	return "Document: " + filename + "\n" + embeddings.Input(c.Doc())
}
