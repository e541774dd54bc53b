package notion

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/retry"
	"github.com/scribehq/scribe/internal/workflow"
)

// WorkflowAdapter adapts the Notion Client to the workflow.Publisher
// interface, wrapping each call in this service's retry policy.
type WorkflowAdapter struct {
	client   Client
	executor *retry.Executor
}

// PublishPolicy is the retry policy for page creation.
func PublishPolicy(maxAttempts int) retry.Policy {
	policy := retry.DefaultPolicy()
	if maxAttempts >= 0 {
		policy.MaxAttempts = maxAttempts
	}
	policy.NonRetryableKinds = retry.Kinds(
		errkind.KindValidation,
		errkind.KindAuth,
		errkind.KindNotFound,
	)
	return policy
}

// NewWorkflowAdapter creates an adapter that implements workflow.Publisher.
func NewWorkflowAdapter(token string, timeout time.Duration, maxAttempts int) (workflow.Publisher, error) {
	client, err := NewClient(token, timeout)
	if err != nil {
		return nil, err
	}
	return NewWorkflowAdapterWithClient(client, PublishPolicy(maxAttempts)), nil
}

// NewWorkflowAdapterWithClient wires an adapter around an existing client
// (mainly for testing).
func NewWorkflowAdapterWithClient(client Client, policy retry.Policy) *WorkflowAdapter {
	return &WorkflowAdapter{
		client:   client,
		executor: retry.NewExecutor(ServiceName, policy, nil),
	}
}

// Executor exposes the adapter's retry executor so tests can replace its
// sleep function.
func (a *WorkflowAdapter) Executor() *retry.Executor {
	return a.executor
}

// Publish implements workflow.Publisher. Identifier validation happens
// before any network attempt.
func (a *WorkflowAdapter) Publish(ctx context.Context, req workflow.PublishRequest) (*workflow.PublishResult, error) {
	if req.DatabaseID == "" {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "destination database ID is required")
	}
	if req.Content == "" {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "content is required")
	}

	pageReq := buildPageRequest(req)

	var page *Page
	err := a.executor.Do(ctx, "create page", func(ctx context.Context) error {
		created, err := a.client.CreatePage(ctx, pageReq)
		if err != nil {
			return err
		}
		page = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &workflow.PublishResult{
		ResourceID:  page.ID,
		URL:         page.URL,
		CreatedTime: page.CreatedTime,
	}, nil
}

// buildPageRequest converts the workflow-level publish request into the
// Notion wire shape: title plus source properties, content split into
// paragraph blocks under Notion's per-block length limit.
func buildPageRequest(req workflow.PublishRequest) CreatePageRequest {
	properties := map[string]interface{}{
		"Name": map[string]interface{}{
			"title": []RichText{{Type: "text", Text: TextContent{Content: req.Title}}},
		},
	}
	if req.SourceChannelID != "" {
		properties["Source Channel"] = map[string]interface{}{
			"rich_text": []RichText{{Type: "text", Text: TextContent{Content: req.SourceChannelID}}},
		}
	}
	if req.SourceThreadTS != "" {
		properties["Source Thread"] = map[string]interface{}{
			"rich_text": []RichText{{Type: "text", Text: TextContent{Content: req.SourceThreadTS}}},
		}
	}

	return CreatePageRequest{
		Parent:     Parent{DatabaseID: req.DatabaseID},
		Properties: properties,
		Children:   contentBlocks(req.Content),
	}
}

// contentBlocks splits content into paragraph blocks, breaking on newlines
// where possible and hard-splitting segments beyond the block length limit.
func contentBlocks(content string) []Block {
	var blocks []Block
	for _, segment := range splitSegments(content) {
		blocks = append(blocks, Block{
			Object: "block",
			Type:   "paragraph",
			Paragraph: &Paragraph{
				RichText: []RichText{{Type: "text", Text: TextContent{Content: segment}}},
			},
		})
	}
	return blocks
}

func splitSegments(content string) []string {
	var segments []string
	for len(content) > maxBlockLength {
		cut := maxBlockLength
		// Prefer breaking at the last newline inside the window.
		for i := cut - 1; i > 0; i-- {
			if content[i] == '\n' {
				cut = i
				break
			}
		}
		// A hard split must not land inside a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		segments = append(segments, content[:cut])
		if cut < len(content) && content[cut] == '\n' {
			cut++
		}
		content = content[cut:]
	}
	if content != "" {
		segments = append(segments, content)
	}
	return segments
}
