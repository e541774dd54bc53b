package slack

import (
	"context"
	"time"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/retry"
	"github.com/scribehq/scribe/internal/workflow"
)

// WorkflowAdapter adapts the Slack Client to the workflow.ThreadFetcher
// interface, wrapping each fetch in this service's retry policy.
type WorkflowAdapter struct {
	client   Client
	executor *retry.Executor
}

// FetchPolicy is the retry policy for thread fetches. Slack's 429 responses
// carry an authoritative Retry-After, which the executor honors over the
// computed backoff.
func FetchPolicy(maxAttempts int) retry.Policy {
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

// NewWorkflowAdapter creates an adapter that implements
// workflow.ThreadFetcher.
func NewWorkflowAdapter(token string, timeout time.Duration, maxAttempts int) (workflow.ThreadFetcher, error) {
	client, err := NewClient(token, timeout)
	if err != nil {
		return nil, err
	}
	return NewWorkflowAdapterWithClient(client, FetchPolicy(maxAttempts)), nil
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

// FetchThread implements workflow.ThreadFetcher. Identifier validation
// happens before any network attempt; a missing channel or thread reference
// is a non-retryable validation error.
func (a *WorkflowAdapter) FetchThread(ctx context.Context, channelID, threadTS string) (*workflow.Thread, error) {
	if channelID == "" {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "channel ID is required")
	}
	if threadTS == "" {
		return nil, errkind.New(ServiceName, errkind.KindValidation, "thread timestamp is required")
	}

	var messages []ThreadMessage
	err := a.executor.Do(ctx, "fetch thread", func(ctx context.Context) error {
		fetched, err := a.client.FetchReplies(ctx, channelID, threadTS)
		if err != nil {
			return err
		}
		messages = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toWorkflowThread(messages), nil
}

// toWorkflowThread converts the raw reply list into a workflow.Thread. The
// Slack API repeats the parent as the first element of the reply list, so a
// first reply with the parent's timestamp is excluded.
func toWorkflowThread(messages []ThreadMessage) *workflow.Thread {
	parent := messages[0]
	replies := messages[1:]
	if len(replies) > 0 && replies[0].TS == parent.TS {
		replies = replies[1:]
	}

	thread := &workflow.Thread{
		ParentMessage: toWorkflowMessage(parent),
		Replies:       make([]workflow.Message, 0, len(replies)),
	}
	for _, reply := range replies {
		thread.Replies = append(thread.Replies, toWorkflowMessage(reply))
	}
	return thread
}

func toWorkflowMessage(m ThreadMessage) workflow.Message {
	message := workflow.Message{
		User:      m.User,
		Text:      m.Text,
		Timestamp: m.TS,
	}
	for _, a := range m.Attachments {
		message.Attachments = append(message.Attachments, workflow.Attachment{
			Title: a.Title,
			Text:  a.Text,
		})
	}
	for _, f := range m.Files {
		message.Files = append(message.Files, workflow.File{
			Name: f.Name,
			URL:  f.URLPrivate,
		})
	}
	return message
}
