package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/logger"
)

func chunkJSON(t *testing.T, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"id":      "cmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "codestral-latest",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	})
	require.NoError(t, err)
	return string(b)
}

func newChatServer(t *testing.T, hits *atomic.Int32, chunks ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "codestral-latest", req.Model)
		assert.True(t, req.Stream)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
			assert.Contains(t, req.Messages[0].Content, "expert python developer")
			assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
			assert.Contains(t, req.Messages[1].Content, "print('hi')")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunkJSON(t, c))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func testRequest() Request {
	return Request{
		SourceText:  "print('hi')",
		Instruction: "add type hints",
		Language:    "python",
	}
}

func TestCloudBackendStreamsReply(t *testing.T) {
	var hits atomic.Int32
	srv := newChatServer(t, &hits, "```python\n", "print('hi')", "\n```")
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "test-key", Endpoint: srv.URL}, logger.NewNullLogger())
	require.NoError(t, err)

	ticks := 0
	resp, err := b.Generate(context.Background(), testRequest(), func() { ticks++ })
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint('hi')\n```", resp.RawText)
	assert.Empty(t, resp.ExtractedCode)
	assert.Equal(t, 3, ticks)
	assert.EqualValues(t, 1, hits.Load())
}

func TestCloudBackendRejectedKeyIsAuthError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Unauthorized","request_id":"abc"}`)
	}))
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "wrong", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrAuth)
	assert.EqualValues(t, 1, hits.Load(), "auth failures must not be retried")
}

func TestCloudBackendServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "k", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrProvider)
	assert.EqualValues(t, 1, hits.Load())
}

func TestCloudBackendRetriesRefusedConnectionOnce(t *testing.T) {
	var hits atomic.Int32
	srv := newChatServer(t, &hits, "```\nx = 1\n```")
	defer srv.Close()

	rt := &refusingTransport{failures: 1}
	b, err := NewCloudBackend(Config{
		Provider:   ProviderCloud,
		APIKey:     "test-key",
		Endpoint:   srv.URL,
		HTTPClient: clientWith(rt),
	}, nil)
	require.NoError(t, err)

	resp, err := b.Generate(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "```\nx = 1\n```", resp.RawText)
	assert.EqualValues(t, 2, rt.calls.Load())
	assert.EqualValues(t, 1, hits.Load())
}

func TestCloudBackendGivesUpAfterSecondRefusal(t *testing.T) {
	rt := &refusingTransport{failures: 10}
	b, err := NewCloudBackend(Config{
		Provider:   ProviderCloud,
		APIKey:     "test-key",
		Endpoint:   "http://127.0.0.1:1",
		HTTPClient: clientWith(rt),
	}, nil)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrConnection)
	assert.ErrorContains(t, err, "cloud (codestral-latest)")
	assert.EqualValues(t, 2, rt.calls.Load())
}

func TestCloudBackendTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "k", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = b.Generate(ctx, testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.EqualValues(t, 1, hits.Load())
}

func TestCloudBackendEmptyStreamIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "k", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrMalformedResponse)
}

func TestCloudBackendGarbledChunkIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json\n\n")
	}))
	defer srv.Close()

	b, err := NewCloudBackend(Config{Provider: ProviderCloud, APIKey: "k", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errs.ErrMalformedResponse)
}
