// Package slack implements the chat-source integration: fetching a captured
// thread from the Slack Web API behind retry and error classification.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/scribehq/scribe/internal/errkind"
)

// ServiceName scopes classified errors to this integration.
const ServiceName = "slack"

const (
	defaultBaseURL = "https://slack.com/api"
	defaultTimeout = 30 * time.Second
)

// ThreadMessage is a message as the Slack API returns it.
type ThreadMessage struct {
	User        string              `json:"user"`
	Text        string              `json:"text"`
	TS          string              `json:"ts"`
	Attachments []MessageAttachment `json:"attachments,omitempty"`
	Files       []MessageFile       `json:"files,omitempty"`
}

// MessageAttachment is an unfurled attachment on a Slack message.
type MessageAttachment struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// MessageFile is a file shared on a Slack message.
type MessageFile struct {
	Name       string `json:"name"`
	URLPrivate string `json:"url_private,omitempty"`
}

// repliesResponse is the conversations.replies response envelope.
type repliesResponse struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Messages []ThreadMessage `json:"messages"`
}

// Client interface for Slack API operations
type Client interface {
	FetchReplies(ctx context.Context, channelID, threadTS string) ([]ThreadMessage, error)
}

// slackClient implements the Client interface
type slackClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Slack API client
func NewClient(token string, timeout time.Duration) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("Slack token is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &slackClient{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
	}, nil
}

// FetchReplies fetches a thread's messages via conversations.replies. The
// first element of the result is the parent message.
func (c *slackClient) FetchReplies(ctx context.Context, channelID, threadTS string) ([]ThreadMessage, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("ts", threadTS)
	params.Set("limit", "200")

	endpoint := fmt.Sprintf("%s/conversations.replies?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errkind.FromHTTPStatus(ServiceName, resp.StatusCode, string(body), parseRetryAfter(resp))
	}

	var repliesResp repliesResponse
	if err := json.NewDecoder(resp.Body).Decode(&repliesResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !repliesResp.OK {
		return nil, classifyAPIError(repliesResp.Error, parseRetryAfter(resp))
	}

	if len(repliesResp.Messages) == 0 {
		return nil, errkind.New(ServiceName, errkind.KindNotFound, "thread %s in channel %s has no messages", threadTS, channelID)
	}

	return repliesResp.Messages, nil
}

// classifyAPIError maps Slack's ok=false error codes onto the taxonomy.
func classifyAPIError(code string, retryAfter time.Duration) *errkind.Classified {
	var classified *errkind.Classified
	switch code {
	case "invalid_auth", "not_authed", "token_revoked", "token_expired", "missing_scope":
		classified = errkind.New(ServiceName, errkind.KindAuth, "Slack rejected credentials")
	case "channel_not_found", "thread_not_found", "message_not_found":
		classified = errkind.New(ServiceName, errkind.KindNotFound, "thread or channel not found")
	case "invalid_arguments", "invalid_ts_latest", "invalid_ts_oldest":
		classified = errkind.New(ServiceName, errkind.KindValidation, "Slack rejected request arguments")
	case "ratelimited", "rate_limited":
		classified = errkind.New(ServiceName, errkind.KindRateLimit, "Slack rate limited the request")
		classified.RetryAfter = retryAfter
	case "internal_error", "service_unavailable", "fatal_error":
		classified = errkind.New(ServiceName, errkind.KindUpstream, "Slack internal error")
	default:
		classified = errkind.New(ServiceName, errkind.KindUnknown, "Slack API error")
	}
	return classified.WithContext("slack_error", code)
}

// parseRetryAfter reads the Retry-After header in seconds. Zero when absent
// or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// SetBaseURL overrides the API base URL (mainly for testing)
func (c *slackClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}
