package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"doc-splitter/internal/app"
	"doc-splitter/internal/config"
	"doc-splitter/internal/logger"
	"doc-splitter/internal/queue"
	"doc-splitter/internal/splitter"
	"doc-splitter/internal/store"
	"doc-splitter/internal/tokenizer"
)

func newTestDeps(st store.Store, q queue.Queue, openAIKey string) app.Deps {
	return app.Deps{
		Store:    st,
		Queue:    q,
		Splitter: splitter.New(tokenizer.Approx{}, splitter.DefaultOptions()),
		Config: config.Config{
			TokenLimit: 100,
			OpenAIKey:  openAIKey,
		},
		Log: logger.Discard(),
	}
}

func generateSections(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("## Section\n")
		b.WriteString(strings.Repeat("lorem ipsum dolor sit amet ", 8))
		b.WriteString("\n")
	}
	return b.String()
}

func TestHandleSplit(t *testing.T) {
	validDocID := uuid.New()

	tests := []struct {
		name      string
		payload   queue.SplitPayload
		openAIKey string
		setup     func(*store.MockStore, *queue.MockQueue)
		wantErr   bool
	}{
		{
			name: "small document is ready without embeddings",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Filename:   "guide.md",
				Content:    "# Guide\nSee [docs](https://example.com).",
			},
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("SaveChunks", mock.Anything, validDocID, mock.MatchedBy(func(chunks []store.Chunk) bool {
					return len(chunks) == 1 &&
						chunks[0].Text == "# Guide\nSee [docs]({$url0})." &&
						assert.ObjectsAreEqual([]string{"https://example.com"}, chunks[0].URLs)
				})).Return([]store.Chunk{{ID: uuid.New(), DocumentID: validDocID}}, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusReady).Return(nil).Once()
			},
		},
		{
			name: "long document splits and enqueues embedding",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Filename:   "long.md",
				Content:    generateSections(20),
				TokenLimit: 80,
			},
			openAIKey: "sk-test",
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("SaveChunks", mock.Anything, validDocID, mock.MatchedBy(func(chunks []store.Chunk) bool {
					if len(chunks) < 2 {
						return false
					}
					for i, c := range chunks {
						if c.Index != i || c.TokenCount > 80 {
							return false
						}
					}
					return true
				})).Return([]store.Chunk{{ID: uuid.New()}}, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusSplit).Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					var payload queue.EmbedPayload
					return task.Type == queue.TaskTypeEmbed &&
						json.Unmarshal(task.Payload, &payload) == nil &&
						payload.DocumentID == validDocID.String()
				})).Return(nil).Once()
			},
		},
		{
			name: "empty document stores no chunks",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Filename:   "empty.md",
			},
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("SaveChunks", mock.Anything, validDocID, []store.Chunk{}).Return([]store.Chunk{}, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusReady).Return(nil).Once()
			},
		},
		{
			name: "limit below envelope overhead fails the document",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Filename:   "guide.md",
				Content:    "# Guide",
				TokenLimit: 10,
			},
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusFailed).Return(nil).Once()
			},
		},
		{
			name:    "invalid document ID",
			payload: queue.SplitPayload{DocumentID: "not-a-uuid"},
			wantErr: true,
		},
		{
			name: "SaveChunks failure",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Content:    "text",
			},
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("SaveChunks", mock.Anything, validDocID, mock.Anything).Return(nil, errors.New("db error")).Once()
			},
			wantErr: true,
		},
		{
			name: "Enqueue failure",
			payload: queue.SplitPayload{
				DocumentID: validDocID.String(),
				Content:    "text",
			},
			openAIKey: "sk-test",
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("SaveChunks", mock.Anything, validDocID, mock.Anything).Return([]store.Chunk{{ID: uuid.New()}}, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusSplit).Return(nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue error")).Times(3)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)
			if tt.setup != nil {
				tt.setup(mockStore, mockQueue)
			}

			err := handleSplit(context.Background(), newTestDeps(mockStore, mockQueue, tt.openAIKey), tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}
}
