package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/logger"
	"github.com/scribehq/scribe/internal/run"
)

// ServiceName scopes errors raised by the engine itself rather than by an
// integration adapter.
const ServiceName = "workflow"

// RecordStore is the slice of the run store the engine needs: durably
// recording each step before the next one begins.
type RecordStore interface {
	Save(rec *run.Record) error
}

// Engine drives a run record through the fetch → transform → publish
// pipeline. Steps execute strictly sequentially; each step's record append is
// persisted before the next step starts. The engine exclusively owns the
// record's status transitions while Execute runs.
type Engine struct {
	fetcher     ThreadFetcher
	transformer Transformer
	publisher   Publisher
	templates   TemplateResolver
	store       RecordStore
	log         *logger.Logger
}

// NewEngine creates a workflow engine wired to its collaborators.
func NewEngine(fetcher ThreadFetcher, transformer Transformer, publisher Publisher, templates TemplateResolver, store RecordStore) *Engine {
	return &Engine{
		fetcher:     fetcher,
		transformer: transformer,
		publisher:   publisher,
		templates:   templates,
		store:       store,
		log:         logger.GetLogger(),
	}
}

// SetLogger overrides the engine's logger (mainly for testing).
func (e *Engine) SetLogger(log *logger.Logger) {
	e.log = log
}

// Execute runs the workflow for one record. It returns the record in its
// terminal state together with the terminal error when the run failed. Any
// adapter terminal error is workflow-fatal: the engine records it and stops,
// it never attempts cross-step recovery.
func (e *Engine) Execute(ctx context.Context, rec *run.Record) (*run.Record, error) {
	log := e.log.WithFields(map[string]interface{}{
		"run_id":   rec.ID,
		"workflow": rec.WorkflowName,
	})
	log.Info("Starting workflow execution")

	if err := rec.MarkStarted(); err != nil {
		return rec, errkind.Wrap(err, ServiceName, errkind.KindValidation, "run %s cannot start from status %s", rec.ID, rec.Status)
	}
	rec.AddStep(StepWorkflowStarted, nil)
	if err := e.store.Save(rec); err != nil {
		return rec, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to persist run start")
	}

	// Fetch step. Input problems fail the workflow before any adapter call.
	input, err := ParseInput(rec.InputPayload)
	if err == nil && !input.HasSource() {
		err = fmt.Errorf("input has neither inline thread content nor a channel_id/thread_ts reference")
	}
	if err != nil {
		classified := errkind.Wrap(err, ServiceName, errkind.KindValidation, "invalid workflow input")
		return e.fail(rec, log, StepSourceFetchFailed, classified)
	}

	thread, err := e.obtainThread(ctx, input)
	if err != nil {
		log.WithField("error", err.Error()).Error("Source fetch failed")
		return e.fail(rec, log, StepSourceFetchFailed, err)
	}
	rec.AddStep(StepSourceFetchCompleted, map[string]interface{}{
		"message_count": thread.MessageCount(),
		"inline":        input.Thread != nil,
	})
	if err := e.store.Save(rec); err != nil {
		return e.fail(rec, log, StepSourceFetchFailed, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to persist fetch step"))
	}
	log.WithField("message_count", thread.MessageCount()).Debug("Source fetch completed")

	// Transform step.
	template, err := e.templates.Resolve(input.Template)
	if err != nil {
		classified := errkind.Wrap(err, ServiceName, errkind.KindValidation, "unknown template %q", input.Template)
		return e.fail(rec, log, StepTransformFailed, classified)
	}

	transformed, err := e.transformer.Transform(ctx, TransformRequest{
		SystemPrompt: template.SystemPrompt,
		Instructions: input.Instructions,
		Thread:       thread,
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("Transform failed")
		return e.fail(rec, log, StepTransformFailed, err)
	}
	rec.AddStep(StepTransformCompleted, map[string]interface{}{
		"model":          transformed.Model,
		"content_length": len(transformed.Content),
	})
	if err := e.store.Save(rec); err != nil {
		return e.fail(rec, log, StepTransformFailed, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to persist transform step"))
	}
	log.WithFields(map[string]interface{}{
		"model":          transformed.Model,
		"content_length": len(transformed.Content),
	}).Debug("Transform completed")

	output := Output{
		ThreadSummary: ThreadSummary{
			ChannelID:    input.ChannelID,
			ThreadTS:     input.ThreadTS,
			MessageCount: thread.MessageCount(),
		},
		Content: transformed.Content,
		Model:   transformed.Model,
	}

	// Publish step. A run without a configured destination skips publishing
	// and still completes; this mirrors the product behavior where a user can
	// transform a thread without linking a document-store database.
	destination := input.DatabaseID
	if destination == "" {
		destination = template.DatabaseID
	}
	if destination == "" {
		rec.AddStep(StepPublishSkipped, map[string]interface{}{
			"reason": "no destination database configured",
		})
		log.Info("Publish skipped: no destination configured")
	} else {
		published, err := e.publisher.Publish(ctx, PublishRequest{
			DatabaseID:      destination,
			Title:           publishTitle(thread),
			Content:         transformed.Content,
			SourceChannelID: input.ChannelID,
			SourceThreadTS:  input.ThreadTS,
		})
		if err != nil {
			log.WithField("error", err.Error()).Error("Publish failed")
			return e.fail(rec, log, StepPublishFailed, err)
		}
		rec.AddStep(StepPublishCompleted, map[string]interface{}{
			"resource_id":  published.ResourceID,
			"resource_url": published.URL,
		})
		output.ResourceID = published.ResourceID
		output.ResourceURL = published.URL
		log.WithField("resource_url", published.URL).Info("Publish completed")
	}

	outputPayload, err := json.Marshal(output)
	if err != nil {
		return e.fail(rec, log, StepPublishFailed, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to encode output payload"))
	}
	if err := rec.MarkCompleted(outputPayload); err != nil {
		return rec, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to complete run %s", rec.ID)
	}
	if err := e.store.Save(rec); err != nil {
		return rec, errkind.Wrap(err, ServiceName, errkind.KindUnknown, "failed to persist completed run")
	}

	log.WithField("duration", rec.Duration().String()).Info("Workflow completed")
	return rec, nil
}

// obtainThread returns the inline thread when the input carries one, and
// fetches from the chat source otherwise.
func (e *Engine) obtainThread(ctx context.Context, input *Input) (*Thread, error) {
	if input.Thread != nil {
		return input.Thread, nil
	}
	return e.fetcher.FetchThread(ctx, input.ChannelID, input.ThreadTS)
}

// fail records the failed step, marks the run failed with the step-qualified
// error message, persists, and returns the terminal error. This is the single
// failure path for every step; there are no partial commits.
func (e *Engine) fail(rec *run.Record, log *logger.Logger, stepName string, cause error) (*run.Record, error) {
	rec.FailStep(stepName, cause)
	if err := rec.MarkFailed(fmt.Sprintf("%s: %s", stepName, cause.Error())); err != nil {
		log.WithField("error", err.Error()).Error("Failed to mark run failed")
	}
	if err := e.store.Save(rec); err != nil {
		log.WithField("error", err.Error()).Error("Failed to persist failed run")
	}
	return rec, cause
}

// publishTitle derives a page title from the thread's parent message.
func publishTitle(thread *Thread) string {
	title := strings.TrimSpace(thread.ParentMessage.Text)
	if title == "" {
		return "Captured thread"
	}
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	const maxTitle = 80
	if len(title) > maxTitle {
		cut := maxTitle
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut] + "…"
	}
	return title
}
