// Package workflow orchestrates one run record through the fetch → transform
// → publish pipeline. It owns the value types and the narrow interfaces the
// integration adapters implement; the adapters convert their wire formats to
// and from these types at the boundary.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Step names appended to the run record's step log, in execution order.
const (
	StepWorkflowStarted      = "workflow_started"
	StepSourceFetchCompleted = "source_fetch_completed"
	StepSourceFetchFailed    = "source_fetch_failed"
	StepTransformCompleted   = "transform_completed"
	StepTransformFailed      = "transform_failed"
	StepPublishCompleted     = "publish_completed"
	StepPublishFailed        = "publish_failed"
	StepPublishSkipped       = "publish_skipped"
)

// Message is a single chat message in a captured thread.
type Message struct {
	User        string       `json:"user"`
	Text        string       `json:"text"`
	Timestamp   string       `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Files       []File       `json:"files,omitempty"`
}

// Attachment is an unfurled link or rich attachment on a message.
type Attachment struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// File is a file shared on a message.
type File struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Thread is a captured chat thread: the parent message plus its replies.
type Thread struct {
	ParentMessage Message   `json:"parent_message"`
	Replies       []Message `json:"replies"`
}

// MessageCount returns the total number of messages including the parent.
func (t *Thread) MessageCount() int {
	return 1 + len(t.Replies)
}

// Render flattens the thread into plain text for the transform step.
func (t *Thread) Render() string {
	var b strings.Builder
	writeMessage(&b, t.ParentMessage)
	for _, reply := range t.Replies {
		writeMessage(&b, reply)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeMessage(b *strings.Builder, m Message) {
	fmt.Fprintf(b, "%s: %s\n", m.User, m.Text)
	for _, a := range m.Attachments {
		if a.Title != "" || a.Text != "" {
			fmt.Fprintf(b, "  [attachment] %s %s\n", a.Title, a.Text)
		}
	}
	for _, f := range m.Files {
		fmt.Fprintf(b, "  [file] %s\n", f.Name)
	}
}

// Input is the parsed input payload of a run record. A run carries either an
// inline Thread or a (ChannelID, ThreadTS) reference to fetch one.
type Input struct {
	ChannelID    string  `json:"channel_id,omitempty"`
	ThreadTS     string  `json:"thread_ts,omitempty"`
	Thread       *Thread `json:"thread,omitempty"`
	Template     string  `json:"template,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
	DatabaseID   string  `json:"database_id,omitempty"`
}

// ParseInput decodes a run record's input payload.
func ParseInput(payload json.RawMessage) (*Input, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("input payload is empty")
	}
	var input Input
	if err := json.Unmarshal(payload, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input payload: %w", err)
	}
	return &input, nil
}

// HasSource reports whether the input carries enough data to obtain a thread:
// either inline content or a complete fetch reference.
func (i *Input) HasSource() bool {
	if i.Thread != nil {
		return true
	}
	return i.ChannelID != "" && i.ThreadTS != ""
}

// Output is the aggregated result payload of a completed run.
type Output struct {
	ThreadSummary ThreadSummary `json:"thread_summary"`
	Content       string        `json:"content"`
	Model         string        `json:"model"`
	ResourceID    string        `json:"resource_id,omitempty"`
	ResourceURL   string        `json:"resource_url,omitempty"`
}

// ThreadSummary is the bounded description of the fetched thread kept in the
// output payload; the full thread content never lands in the run record.
type ThreadSummary struct {
	ChannelID    string `json:"channel_id,omitempty"`
	ThreadTS     string `json:"thread_ts,omitempty"`
	MessageCount int    `json:"message_count"`
}

// TransformRequest asks the LLM to rewrite a thread under a system prompt.
type TransformRequest struct {
	SystemPrompt string
	Instructions string
	Thread       *Thread
}

// TransformResult is the LLM's output.
type TransformResult struct {
	Content string
	Model   string
}

// PublishRequest asks the document store to create a page for the
// transformed content under the destination database.
type PublishRequest struct {
	DatabaseID      string
	Title           string
	Content         string
	SourceChannelID string
	SourceThreadTS  string
}

// PublishResult describes the created resource.
type PublishResult struct {
	ResourceID  string
	URL         string
	CreatedTime time.Time
}

// ThreadFetcher fetches a captured thread from the chat source.
type ThreadFetcher interface {
	FetchThread(ctx context.Context, channelID, threadTS string) (*Thread, error)
}

// Transformer runs the LLM transformation step.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)
}

// Publisher writes the transformed content to the document store.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}

// Template is a named transform preset: a system prompt and an optional
// destination database.
type Template struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	DatabaseID   string `yaml:"database_id,omitempty"`
}

// TemplateResolver resolves a template name to its definition. An empty name
// resolves to the default template.
type TemplateResolver interface {
	Resolve(name string) (*Template, error)
}
