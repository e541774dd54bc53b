package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/output"
	"github.com/scribehq/scribe/internal/run"
	"github.com/scribehq/scribe/internal/workflow"
)

const defaultWorkflowName = "thread-capture"

// newRunCommand creates the run command: create a run record and execute it.
func newRunCommand() *cobra.Command {
	var (
		channelID    string
		threadTS     string
		inputFile    string
		templateName string
		instructions string
		databaseID   string
		workflowName string
		async        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a workflow run and execute it",
		Long: `Create a workflow run and execute it.

The thread to capture comes either from a channel/thread reference fetched
from the chat source, or from an input file containing the full run input
as JSON (which may embed the thread inline).

With --async the run is only enqueued; a worker picks it up later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := output.NewPrinter()

			cfg, err := config.New()
			if err != nil {
				return err
			}

			payload, err := buildInputPayload(inputFile, channelID, threadTS, templateName, instructions, databaseID)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rec, err := run.NewRecord(workflowName, payload)
			if err != nil {
				return err
			}
			if err := st.Create(rec); err != nil {
				return err
			}
			printer.Step("Created run %s", rec.ID)

			if async {
				printer.Info("Run enqueued; a worker will pick it up")
				return nil
			}

			engine, err := buildEngine(cfg, st)
			if err != nil {
				return err
			}

			final, err := engine.Execute(cmd.Context(), rec)
			if err != nil {
				printer.Error("Run %s failed: %s", final.ID, err.Error())
				return fmt.Errorf("run %s %s", final.ID, final.Status)
			}

			printer.Success("Run %s completed in %s", final.ID, final.Duration().Round(timeRounding))
			if url := resourceURL(final); url != "" {
				printer.Detail("Published: %s", url)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Chat channel ID of the thread to capture")
	cmd.Flags().StringVar(&threadTS, "thread-ts", "", "Thread timestamp of the thread to capture")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Read the full run input from a JSON file")
	cmd.Flags().StringVar(&templateName, "template", "", "Transform template name (default template if empty)")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Extra instructions appended to the transform prompt")
	cmd.Flags().StringVar(&databaseID, "database", "", "Destination database ID (overrides the template's)")
	cmd.Flags().StringVar(&workflowName, "workflow", defaultWorkflowName, "Workflow name recorded on the run")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue the run instead of executing it now")

	return cmd
}

// buildInputPayload assembles the run input from an input file or from flags.
// Flags override fields read from the file.
func buildInputPayload(inputFile, channelID, threadTS, templateName, instructions, databaseID string) (json.RawMessage, error) {
	input := &workflow.Input{}
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		input, err = workflow.ParseInput(data)
		if err != nil {
			return nil, err
		}
	}

	if channelID != "" {
		input.ChannelID = channelID
	}
	if threadTS != "" {
		input.ThreadTS = threadTS
	}
	if templateName != "" {
		input.Template = templateName
	}
	if instructions != "" {
		input.Instructions = instructions
	}
	if databaseID != "" {
		input.DatabaseID = databaseID
	}

	if !input.HasSource() {
		return nil, fmt.Errorf("either --channel and --thread-ts or an --input-file with thread content is required")
	}

	return json.Marshal(input)
}

// resourceURL extracts the published resource URL from a completed run.
func resourceURL(rec *run.Record) string {
	if len(rec.OutputPayload) == 0 {
		return ""
	}
	var out workflow.Output
	if err := json.Unmarshal(rec.OutputPayload, &out); err != nil {
		return ""
	}
	return out.ResourceURL
}
