package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func TestQdrantRetriever_Search(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections/waterdrop_faq/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":[
			{"id":1,"score":0.91,"payload":{"page_content":"Check the O-ring for damage.","metadata":{"source":"faq.md"}}},
			{"id":2,"score":0.80,"payload":{"metadata":{"source":"empty"}}},
			{"id":3,"score":0.75,"payload":{"page_content":"Flush for 5 minutes."}}
		]}`))
	}))
	defer srv.Close()

	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	r := NewQdrantRetriever(QdrantConfig{BaseURL: srv.URL + "/", APIKey: "secret"}, emb, nil)

	docs, err := r.Search(context.Background(), "WD-A1 leaking", 4)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].Rank)
	assert.Equal(t, "Check the O-ring for damage.", docs[0].Content)
	assert.Equal(t, "faq.md", docs[0].Metadata["source"])
	assert.InDelta(t, 0.91, docs[0].Score, 1e-9)
	assert.Equal(t, 2, docs[1].Rank, "ranks stay contiguous after skipped hits")

	assert.Equal(t, 4, got.Limit)
	assert.True(t, got.WithPayload)
	assert.Equal(t, []float32{0.1, 0.2}, got.Vector)
	assert.Nil(t, got.ScoreThreshold)
}

func TestQdrantRetriever_EmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	r := NewQdrantRetriever(QdrantConfig{}, emb, nil)
	_, err := r.Search(context.Background(), "   ", 4)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, emb.calls)
}

func TestQdrantRetriever_EmbedFailure(t *testing.T) {
	r := NewQdrantRetriever(QdrantConfig{}, &fakeEmbedder{err: errors.New("quota")}, nil)
	_, err := r.Search(context.Background(), "leak", 4)
	assert.ErrorContains(t, err, "quota")
}

func TestQdrantRetriever_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewQdrantRetriever(QdrantConfig{BaseURL: srv.URL}, &fakeEmbedder{vec: []float32{1}}, nil)
	_, err := r.Search(context.Background(), "leak", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
}

func TestQdrantRetriever_ZeroTopK(t *testing.T) {
	emb := &fakeEmbedder{}
	r := NewQdrantRetriever(QdrantConfig{}, emb, nil)
	docs, err := r.Search(context.Background(), "leak", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, emb.calls)
}
