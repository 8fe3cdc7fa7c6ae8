package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julianshen/aksmigrate/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sseBody = `data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":null}]}

data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`

func collect(t *testing.T, ch <-chan provider.StreamEvent) ([]string, bool, error) {
	t.Helper()
	var parts []string
	var stopped bool
	var firstErr error
	for evt := range ch {
		switch evt.Type {
		case provider.EventTextDelta:
			parts = append(parts, evt.Text)
		case provider.EventStop:
			stopped = true
		case provider.EventError:
			if firstErr == nil {
				firstErr = evt.Error
			}
		}
	}
	return parts, stopped, firstErr
}

func TestStreamTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req apiRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Hi", req.Messages[1].Content)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sseBody))
	}))
	defer server.Close()

	p := New(server.URL, "test-api-key", nil)
	var _ provider.LLMProvider = p

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Model:     "gpt-4o",
		System:    "You are helpful.",
		Messages:  []provider.Message{provider.NewUserMessage("Hi")},
		MaxTokens: 1024,
	})
	require.NoError(t, err)

	parts, stopped, streamErr := collect(t, ch)
	require.NoError(t, streamErr)
	assert.Equal(t, []string{"Hello", " world"}, parts)
	assert.True(t, stopped)
}

func TestStreamAzureEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt4/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sseBody))
	}))
	defer server.Close()

	p := NewEndpoint(provider.Endpoint{
		BaseURL: server.URL + "/openai/deployments/gpt4/",
		Headers: map[string]string{"api-key": "azure-key"},
		Query:   map[string]string{"api-version": "2024-06-01"},
	})

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{Messages: []provider.Message{provider.NewUserMessage("Hi")}})
	require.NoError(t, err)
	parts, _, streamErr := collect(t, ch)
	require.NoError(t, streamErr)
	assert.Equal(t, []string{"Hello", " world"}, parts)
}

func TestStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "nope", nil).Stream(context.Background(), provider.CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestStreamMalformedChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {not json}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL, "", nil).Stream(context.Background(), provider.CompletionRequest{})
	require.NoError(t, err)
	_, stopped, streamErr := collect(t, ch)
	assert.Error(t, streamErr)
	assert.True(t, stopped)
}

func TestStreamWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL, "", nil).Stream(context.Background(), provider.CompletionRequest{})
	require.NoError(t, err)
	parts, stopped, streamErr := collect(t, ch)
	require.NoError(t, streamErr)
	assert.Equal(t, []string{"ok"}, parts)
	assert.True(t, stopped)
}
