// Package notion implements the document-store integration: publishing
// transformed content as a page under a Notion database behind retry and
// error classification.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/scribehq/scribe/internal/errkind"
)

// ServiceName scopes classified errors to this integration.
const ServiceName = "notion"

const (
	defaultBaseURL = "https://api.notion.com/v1"
	defaultTimeout = 30 * time.Second
	apiVersion     = "2022-06-28"

	// maxBlockLength is Notion's limit on rich text content per block;
	// longer content is split across paragraph blocks.
	maxBlockLength = 2000
)

// CreatePageRequest is the pages endpoint request body.
type CreatePageRequest struct {
	Parent     Parent                 `json:"parent"`
	Properties map[string]interface{} `json:"properties"`
	Children   []Block                `json:"children,omitempty"`
}

// Parent identifies the database the page is created under.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// Block is a page content block.
type Block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
}

// Paragraph is a paragraph block's content.
type Paragraph struct {
	RichText []RichText `json:"rich_text"`
}

// RichText is one rich text segment.
type RichText struct {
	Type string `json:"type"`
	Text TextContent `json:"text"`
}

// TextContent is the plain text inside a rich text segment.
type TextContent struct {
	Content string `json:"content"`
}

// Page describes a created page.
type Page struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	CreatedTime time.Time `json:"created_time"`
}

// apiError is the Notion error response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client interface for Notion API operations
type Client interface {
	CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error)
}

// notionClient implements the Client interface
type notionClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Notion API client
func NewClient(token string, timeout time.Duration) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("Notion token is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &notionClient{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
	}, nil
}

// CreatePage creates a page under the request's parent database.
func (c *notionClient) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Notion-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		summary := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			summary = fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return nil, errkind.FromHTTPStatus(ServiceName, resp.StatusCode, summary, retryAfterHeader(resp))
	}

	var page Page
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}
	return &page, nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
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
func (c *notionClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}
