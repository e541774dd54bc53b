package cli

import (
	"context"
	"fmt"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/llm"
	"github.com/scribehq/scribe/internal/notion"
	"github.com/scribehq/scribe/internal/prompts"
	"github.com/scribehq/scribe/internal/slack"
	"github.com/scribehq/scribe/internal/store"
	"github.com/scribehq/scribe/internal/workflow"
)

// openStore opens the run record store at the configured path.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store at %s: %w", cfg.DBPath, err)
	}
	return st, nil
}

// buildEngine wires the workflow engine from configuration. The transform
// credential is required; the chat source and document store are optional
// and fail with a classified error only when a run actually needs them.
func buildEngine(cfg *config.Config, st *store.Store) (*workflow.Engine, error) {
	templates, err := prompts.LoadRegistry(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("SCRIBE_LLM_API_KEY is required to execute runs")
	}
	transformer, err := llm.NewWorkflowAdapter(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, cfg.LLM.MaxRetries)
	if err != nil {
		return nil, err
	}

	var fetcher workflow.ThreadFetcher
	if cfg.Slack.Token != "" {
		fetcher, err = slack.NewWorkflowAdapter(cfg.Slack.Token, cfg.Slack.Timeout, cfg.Slack.MaxRetries)
		if err != nil {
			return nil, err
		}
	} else {
		fetcher = unconfiguredFetcher{}
	}

	var publisher workflow.Publisher
	if cfg.Notion.Token != "" {
		publisher, err = notion.NewWorkflowAdapter(cfg.Notion.Token, cfg.Notion.Timeout, cfg.Notion.MaxRetries)
		if err != nil {
			return nil, err
		}
	} else {
		publisher = unconfiguredPublisher{}
	}

	return workflow.NewEngine(fetcher, transformer, publisher, templates, st), nil
}

// unconfiguredFetcher stands in when no chat-source token is set. Runs with
// inline thread content never reach it.
type unconfiguredFetcher struct{}

func (unconfiguredFetcher) FetchThread(ctx context.Context, channelID, threadTS string) (*workflow.Thread, error) {
	return nil, errkind.New(slack.ServiceName, errkind.KindAuth, "SCRIBE_SLACK_TOKEN is not set")
}

// unconfiguredPublisher stands in when no document-store token is set. Runs
// without a destination database never reach it.
type unconfiguredPublisher struct{}

func (unconfiguredPublisher) Publish(ctx context.Context, req workflow.PublishRequest) (*workflow.PublishResult, error) {
	return nil, errkind.New(notion.ServiceName, errkind.KindAuth, "SCRIBE_NOTION_TOKEN is not set")
}
