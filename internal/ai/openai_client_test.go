package ai

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

func fakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient(Config{
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/v1",
		Model:    "gpt-4o-mini",
		JSONMode: true,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIClient_GetReply(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	c := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\":\"hi\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	})

	out, err := c.GetReply(context.Background(), []Message{
		{Role: RoleSystem, Text: "be nice"},
		{Role: RoleUser, Text: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"hi"}`, out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestOpenAIClient_GetReplyError(t *testing.T) {
	c := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})
	_, err := c.GetReply(context.Background(), []Message{{Role: RoleUser, Text: "x"}})
	assert.Error(t, err)
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	c := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	out, err := c.GetReply(context.Background(), []Message{{Role: RoleUser, Text: "x"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAIClient_Embed(t *testing.T) {
	c := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-large", req.Model)
		assert.Equal(t, []string{"leaking filter"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-large",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}]}`))
	})

	vec, err := c.Embed(context.Background(), "leaking filter")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
}

func TestOpenAIClient_CanceledContext(t *testing.T) {
	c, err := NewOpenAIClient(Config{APIKey: "k", RequestsPerSecond: 0.001, Burst: 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetReply(ctx, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
