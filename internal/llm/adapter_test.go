package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/retry"
	"github.com/scribehq/scribe/internal/workflow"
)

func testThread() *workflow.Thread {
	return &workflow.Thread{
		ParentMessage: workflow.Message{User: "ana", Text: "DB migration plan"},
		Replies: []workflow.Message{
			{User: "bo", Text: "looks good"},
		},
	}
}

func newServerAdapter(t *testing.T, handler http.HandlerFunc) *WorkflowAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	adapter := NewWorkflowAdapterWithClient(client, TransformPolicy(2))
	adapter.Executor().SetSleepFunc(func(ctx context.Context, d time.Duration) error { return nil })
	return adapter
}

func completionResponse(content, model string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:    "cmpl-1",
		Model: model,
		Choices: []Choice{
			{Message: ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	assert.Error(t, err)

	client, err := NewClient(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, 0.2, client.Temperature())
	assert.Equal(t, 4000, client.MaxTokens())
}

func TestTransform_Success(t *testing.T) {
	t.Parallel()

	var received ChatCompletionRequest
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(completionResponse("  the document  ", "gpt-4o-mini-2024"))
	})

	result, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite the thread",
		Instructions: "keep it short",
		Thread:       testThread(),
	})
	require.NoError(t, err)

	assert.Equal(t, "the document", result.Content)
	assert.Equal(t, "gpt-4o-mini-2024", result.Model)

	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "rewrite the thread", received.Messages[0].Content)
	assert.Equal(t, "user", received.Messages[1].Role)
	assert.Contains(t, received.Messages[1].Content, "ana: DB migration plan")
	assert.Contains(t, received.Messages[1].Content, "Additional instructions: keep it short")
}

func TestTransform_ValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite",
	})
	require.Error(t, err)
	assert.Equal(t, errkind.KindValidation, errkind.KindOf(err))

	_, err = adapter.Transform(context.Background(), workflow.TransformRequest{
		Thread: testThread(),
	})
	require.Error(t, err)
	assert.Equal(t, errkind.KindValidation, errkind.KindOf(err))

	assert.Zero(t, calls)
}

func TestTransform_EmptyCompletionIsValidationError(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{ID: "cmpl-1", Model: "gpt-4o-mini"})
	})

	_, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite",
		Thread:       testThread(),
	})
	require.Error(t, err)

	// An empty completion is not retried.
	assert.Equal(t, 1, calls)
	exhausted, ok := retry.AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, errkind.KindValidation, exhausted.Cause.Kind)
}

func TestTransform_RetriesUpstreamErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(completionResponse("the document", "gpt-4o-mini"))
	})

	result, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite",
		Thread:       testThread(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "the document", result.Content)
}

func TestTransform_AuthFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite",
		Thread:       testThread(),
	})
	require.Error(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, errkind.KindAuth, errkind.KindOf(err))
}

func TestTransform_FallsBackToConfiguredModel(t *testing.T) {
	t.Parallel()

	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionResponse("the document", ""))
	})

	result, err := adapter.Transform(context.Background(), workflow.TransformRequest{
		SystemPrompt: "rewrite",
		Thread:       testThread(),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, result.Model)
}
