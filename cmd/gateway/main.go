package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"doc-splitter/internal/app"
	"doc-splitter/internal/cache"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httputil.ListenAndServe(ctx, deps.Log, "gateway", deps.Config.Port, routes(deps)); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func routes(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)
	v := httputil.NewValidator()

	r.Post("/api/split", splitHandler(deps, v))
	r.Post("/api/documents/upload", uploadHandler(deps))
	r.Get("/api/documents/{id}/chunks", chunksHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

type splitRequest struct {
	Text string `json:"text" validate:"required"`
	// Zero selects the configured TOKEN_LIMIT.
	TokenLimit int `json:"token_limit" validate:"omitempty,min=1"`
}

type splitResponse struct {
	Chunks   []splitter.Doc `json:"chunks"`
	Overhead int            `json:"overhead"`
	Cached   bool           `json:"cached"`
}

func splitHandler(deps app.Deps, v *httputil.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, deps.Config.MaxUploadSize)

		var req splitRequest
		if err := v.DecodeJSON(r, &req); err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}
		limit := req.TokenLimit
		if limit == 0 {
			limit = deps.Config.TokenLimit
		}

		key := cache.SplitKey(cacheNamespace(deps), limit, req.Text)
		cached, err := deps.Cache.GetSplit(ctx, key)
		if err != nil {
			deps.Log.Warn("split cache read failed", "err", err)
		}
		if cached != nil {
			httputil.WriteJSON(w, http.StatusOK, splitResponse{Chunks: cached.Chunks, Overhead: cached.Overhead, Cached: true})
			return
		}

		docs, err := deps.Splitter.Split(req.Text, limit)
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, splitStatus(err))
			return
		}
		overhead, err := deps.Splitter.Overhead()
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to measure envelope overhead", err, http.StatusInternalServerError)
			return
		}

		result := &cache.SplitResult{Chunks: docs, Overhead: overhead}
		if err := deps.Cache.SetSplit(ctx, key, result, deps.Config.CacheTTL); err != nil {
			deps.Log.Warn("split cache write failed", "err", err)
		}
		httputil.WriteJSON(w, http.StatusOK, splitResponse{Chunks: docs, Overhead: overhead})
	}
}

// cacheNamespace separates cached splits produced by different tokenizers.
func cacheNamespace(deps app.Deps) string {
	return deps.Config.Tokenizer + ":" + deps.Config.TokenizerModel
}

func splitStatus(err error) int {
	switch {
	case errors.Is(err, splitter.ErrInvalidLimit), errors.Is(err, splitter.ErrLimitBelowOverhead):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var allowedTypes = map[string]bool{
	"text/markdown":   true,
	"text/x-markdown": true,
	"text/plain":      true,
	"application/pdf": true,
}

func contentTypeFor(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, ok := strings.Cut(declared, ";"); ok {
			return strings.TrimSpace(mt)
		}
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		if !allowedTypes[contentTypeFor(header.Filename, header.Header.Get("Content-Type"))] {
			httputil.Fail(deps.Log, w, "unsupported file type (only Markdown, TXT and PDF allowed)", nil, http.StatusBadRequest)
			return
		}

		limit := deps.Config.TokenLimit
		if raw := r.FormValue("token_limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 {
				httputil.Fail(deps.Log, w, "token_limit must be a positive integer", err, http.StatusBadRequest)
				return
			}
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := extractText(header.Filename, content, deps.Log)

		doc, err := deps.Store.CreateDocument(ctx, header.Filename, limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(queue.SplitPayload{
			DocumentID: doc.ID.String(),
			Filename:   header.Filename,
			Content:    text,
			TokenLimit: limit,
		})
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, doc.ID, http.StatusInternalServerError, true)
			return
		}
		task := queue.Task{Type: queue.TaskTypeSplit, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue document; please retry", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID.String(),
			"status":      doc.Status,
			"token_limit": limit,
		})
	}
}

// fail is gateway-specific error handler that can mark documents as failed
func fail(deps app.Deps, ctx context.Context, w http.ResponseWriter, message string, err error, docID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("document_id", docID)
	if markFailed && docID != uuid.Nil {
		if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
	}

	httputil.Fail(log, w, message, err, status)
}

func chunksHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}
		doc, err := deps.Store.GetDocument(r.Context(), docID)
		if errors.Is(err, store.ErrDocumentNotFound) {
			httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load document", err, http.StatusInternalServerError)
			return
		}
		chunks, err := deps.Store.ListChunks(r.Context(), docID)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list chunks", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id": doc.ID.String(),
			"filename":    doc.Filename,
			"status":      doc.Status,
			"token_limit": doc.TokenLimit,
			"chunks":      chunks,
		})
	}
}

// extractText returns the upload as text, pulling page text out of PDFs.
func extractText(filename string, content []byte, log *slog.Logger) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
