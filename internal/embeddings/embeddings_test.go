package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-splitter/internal/splitter"
)

func TestInput(t *testing.T) {
	var headers splitter.Headings
	headers.Insert(splitter.H1, "Guide")
	headers.Insert(splitter.H2, "Install")

	doc := splitter.Doc{
		Text: "See [docs]({$url0}) and ![shot]({$img0}).",
		Metadata: splitter.Metadata{
			Headers: headers,
			URLs:    []string{"https://example.com/docs"},
			Images:  []string{"shot.png"},
		},
	}
	assert.Equal(t, "Guide > Install\n\nSee [docs](https://example.com/docs) and ![shot](shot.png).", Input(doc))

	doc.Metadata.Headers = splitter.Headings{}
	assert.Equal(t, "See [docs](https://example.com/docs) and ![shot](shot.png).", Input(doc))
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "")
	assert.Error(t, err)

	e, err := NewOpenAIEmbedder("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())
}

func TestOpenAIEmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.25]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []Vector{{1, 0}, {0.5, 0.25}}, vecs)
}

func TestOpenAIEmbedBatchEmpty(t *testing.T) {
	e, err := NewOpenAIEmbedder("sk-test", "")
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestOpenAIEmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m","usage":{"prompt_tokens":0,"total_tokens":0}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
