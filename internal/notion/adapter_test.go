package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/retry"
	"github.com/scribehq/scribe/internal/workflow"
)

func newServerAdapter(t *testing.T, handler http.HandlerFunc) *WorkflowAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("secret-token", 5*time.Second)
	require.NoError(t, err)
	client.(*notionClient).SetBaseURL(server.URL)

	adapter := NewWorkflowAdapterWithClient(client, PublishPolicy(2))
	adapter.Executor().SetSleepFunc(func(ctx context.Context, d time.Duration) error { return nil })
	return adapter
}

func publishRequest() workflow.PublishRequest {
	return workflow.PublishRequest{
		DatabaseID:      "db-1",
		Title:           "DB migration plan",
		Content:         "the document",
		SourceChannelID: "C042",
		SourceThreadTS:  "1718000000.000100",
	}
}

func TestNewClient_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", 0)
	assert.Error(t, err)

	client, err := NewClient("secret-token", 0)
	assert.NoError(t, err)
	assert.NotNil(t, client)
}

func TestPublish_Success(t *testing.T) {
	t.Parallel()

	var received CreatePageRequest
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("Notion-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(Page{
			ID:          "page-1",
			URL:         "https://notion.so/page-1",
			CreatedTime: time.Now().UTC(),
		})
	})

	result, err := adapter.Publish(context.Background(), publishRequest())
	require.NoError(t, err)

	assert.Equal(t, "page-1", result.ResourceID)
	assert.Equal(t, "https://notion.so/page-1", result.URL)
	assert.Equal(t, "db-1", received.Parent.DatabaseID)
	require.Len(t, received.Children, 1)
	assert.Equal(t, "the document", received.Children[0].Paragraph.RichText[0].Text.Content)
	assert.Contains(t, received.Properties, "Name")
	assert.Contains(t, received.Properties, "Source Channel")
	assert.Contains(t, received.Properties, "Source Thread")
}

func TestPublish_ValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	req := publishRequest()
	req.DatabaseID = ""
	_, err := adapter.Publish(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errkind.KindValidation, errkind.KindOf(err))

	req = publishRequest()
	req.Content = ""
	_, err = adapter.Publish(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errkind.KindValidation, errkind.KindOf(err))

	assert.Zero(t, calls)
}

func TestPublish_AuthFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(apiError{Code: "unauthorized", Message: "API token is invalid"})
	})

	_, err := adapter.Publish(context.Background(), publishRequest())
	require.Error(t, err)

	assert.Equal(t, 1, calls)
	exhausted, ok := retry.AsExhausted(err)
	require.True(t, ok)
	assert.Zero(t, exhausted.Retries)
	assert.Equal(t, errkind.KindAuth, exhausted.Cause.Kind)
}

func TestPublish_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	calls := 0
	adapter := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(Page{ID: "page-1", URL: "https://notion.so/page-1"})
	})

	result, err := adapter.Publish(context.Background(), publishRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "page-1", result.ResourceID)
}

func TestContentBlocks_SingleShortBlock(t *testing.T) {
	t.Parallel()

	blocks := contentBlocks("short content")

	require.Len(t, blocks, 1)
	assert.Equal(t, "block", blocks[0].Object)
	assert.Equal(t, "paragraph", blocks[0].Type)
	assert.Equal(t, "short content", blocks[0].Paragraph.RichText[0].Text.Content)
}

func TestSplitSegments(t *testing.T) {
	t.Parallel()

	t.Run("prefers newline boundaries", func(t *testing.T) {
		first := strings.Repeat("a", 1500)
		second := strings.Repeat("b", 1000)
		segments := splitSegments(first + "\n" + second)

		require.Len(t, segments, 2)
		assert.Equal(t, first, segments[0])
		assert.Equal(t, second, segments[1])
	})

	t.Run("hard splits without newlines", func(t *testing.T) {
		segments := splitSegments(strings.Repeat("a", maxBlockLength*2+100))

		require.Len(t, segments, 3)
		for _, segment := range segments {
			assert.LessOrEqual(t, len(segment), maxBlockLength)
		}
		assert.Len(t, segments[0], maxBlockLength)
	})

	t.Run("hard split lands on a rune boundary", func(t *testing.T) {
		// 700 three-byte runes; the block limit of 2000 bytes falls inside
		// the 667th rune, so the split must back up to byte 1998.
		segments := splitSegments(strings.Repeat("€", 700))

		require.Len(t, segments, 2)
		assert.Len(t, segments[0], 1998)
		for _, segment := range segments {
			assert.True(t, utf8.ValidString(segment))
		}
	})

	t.Run("empty content yields no segments", func(t *testing.T) {
		assert.Empty(t, splitSegments(""))
	})
}
