package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/retry"
	"github.com/scribehq/scribe/internal/workflow"
)

// WorkflowAdapter adapts the chat-completions Client to the
// workflow.Transformer interface, wrapping each call in this service's retry
// policy.
type WorkflowAdapter struct {
	client   Client
	executor *retry.Executor
}

// TransformPolicy is the retry policy for transform calls. Jitter is disabled
// so tests can assert on exact sleep durations.
func TransformPolicy(maxAttempts int) retry.Policy {
	policy := retry.DefaultPolicy()
	if maxAttempts >= 0 {
		policy.MaxAttempts = maxAttempts
	}
	policy.Jitter = false
	policy.NonRetryableKinds = retry.Kinds(
		errkind.KindValidation,
		errkind.KindAuth,
		errkind.KindNotFound,
	)
	return policy
}

// NewWorkflowAdapter creates an adapter that implements
// workflow.Transformer.
func NewWorkflowAdapter(config Config, maxAttempts int) (workflow.Transformer, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return NewWorkflowAdapterWithClient(client, TransformPolicy(maxAttempts)), nil
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

// Transform implements workflow.Transformer. The thread is rendered to plain
// text and sent with the template's system prompt; the response must expose
// generated text or the call fails with a validation-kind error.
func (a *WorkflowAdapter) Transform(ctx context.Context, req workflow.TransformRequest) (*workflow.TransformResult, error) {
	if req.Thread == nil {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "thread content is required")
	}
	if req.SystemPrompt == "" {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "system prompt is required")
	}

	userPrompt := req.Thread.Render()
	if req.Instructions != "" {
		userPrompt = fmt.Sprintf("%s\n\nAdditional instructions: %s", userPrompt, req.Instructions)
	}

	chatReq := ChatCompletionRequest{
		Model: a.client.Model(),
		Messages: []ChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   a.client.MaxTokens(),
		Temperature: a.client.Temperature(),
	}

	var resp *ChatCompletionResponse
	err := a.executor.Do(ctx, "transform thread", func(ctx context.Context) error {
		completed, err := a.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		if len(completed.Choices) == 0 || strings.TrimSpace(completed.Choices[0].Message.Content) == "" {
			return errkind.New(ServiceName, errkind.KindValidation, "response contains no generated text")
		}
		resp = completed
		return nil
	})
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = a.client.Model()
	}

	return &workflow.TransformResult{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   model,
	}, nil
}
