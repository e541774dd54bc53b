// Package llm implements the transform integration: rewriting a captured
// thread through an OpenAI-compatible chat-completions API behind retry and
// error classification.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scribehq/scribe/internal/errkind"
)

// ServiceName scopes classified errors to this integration.
const ServiceName = "llm"

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second

	// DefaultModel is the fallback model when none is configured.
	DefaultModel = "gpt-4o-mini"

	defaultTemperature = 0.2
	defaultMaxTokens   = 4000
)

// ChatMessage is one message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request body for the chat completions
// endpoint.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatCompletionResponse is the response from the chat completions endpoint.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds LLM client configuration. Credentials and tuning arrive here
// at construction time; the client never reads the environment.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64 // nil = use default (0.2)
	MaxTokens   *int     // nil = use default (4000)
	Timeout     time.Duration
}

// Client interface for chat completion operations
type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	Model() string
	Temperature() float64
	MaxTokens() int
}

// llmClient implements the Client interface
type llmClient struct {
	config     Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new chat-completions client with scribe defaults.
func NewClient(config Config) (Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		temp := defaultTemperature
		config.Temperature = &temp
	}
	if config.MaxTokens == nil {
		tokens := defaultMaxTokens
		config.MaxTokens = &tokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &llmClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		baseURL: baseURL,
	}, nil
}

// CreateChatCompletion sends a chat completion request.
func (c *llmClient) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errkind.FromHTTPStatus(ServiceName, resp.StatusCode, string(respBody), retryAfterHeader(resp))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &chatResp, nil
}

// Model returns the configured model identifier.
func (c *llmClient) Model() string { return c.config.Model }

// Temperature returns the configured sampling temperature.
func (c *llmClient) Temperature() float64 { return *c.config.Temperature }

// MaxTokens returns the configured completion token bound.
func (c *llmClient) MaxTokens() int { return *c.config.MaxTokens }

func retryAfterHeader(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
