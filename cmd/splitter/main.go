package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doc-splitter/internal/app"
	"doc-splitter/internal/httputil"
	"doc-splitter/internal/queue"
	"doc-splitter/internal/splitter"
	"doc-splitter/internal/store"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("splitter worker starting", "token_limit", deps.Config.TokenLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeSplit, func(ctx context.Context, task queue.Task) error {
			var payload queue.SplitPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleSplit(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, "splitter", deps.Config.Port)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("splitter service stopped", "err", err)
	}
}

// handleSplit chunks an uploaded document and stores the chunks. Limits the
// splitter rejects fail the document without a retry.
func handleSplit(ctx context.Context, deps app.Deps, payload queue.SplitPayload) error {
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return err
	}
	log := deps.Log.With("document_id", docID, "filename", payload.Filename)

	limit := payload.TokenLimit
	if limit == 0 {
		limit = deps.Config.TokenLimit
	}

	docs, err := deps.Splitter.Split(payload.Content, limit)
	if errors.Is(err, splitter.ErrInvalidLimit) || errors.Is(err, splitter.ErrLimitBelowOverhead) {
		log.Error("document cannot be split", "token_limit", limit, "err", err)
		return deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed)
	}
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}

	saved, err := deps.Store.SaveChunks(ctx, docID, store.ChunksFromDocs(docs))
	if err != nil {
		return err
	}
	log.Info("document split", "chunks", len(saved), "token_limit", limit)

	if deps.Config.OpenAIKey == "" {
		return deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusReady)
	}
	if err := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusSplit); err != nil {
		return err
	}
	body, err := json.Marshal(queue.EmbedPayload{DocumentID: docID.String()})
	if err != nil {
		return err
	}
	task := queue.Task{Type: queue.TaskTypeEmbed, Payload: body, NotBefore: time.Now()}
	return queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond)
}
