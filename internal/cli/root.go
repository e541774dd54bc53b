// Package cli wires the scribe commands: creating and executing runs,
// inspecting run records, and the background worker.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	var showVersion bool

	cmd := &cobra.Command{
		Use:   "scribe",
		Short: "Scribe - capture chat threads into documents",
		Long: `Scribe - capture chat threads into documents

Scribe fetches a chat thread, rewrites it into a self-contained document
with an LLM, and publishes the result to a document store. Every run is
recorded durably so it can be inspected or retried later.

Examples:
  scribe run --channel C0123 --thread-ts 1718000000.123456
  scribe run --input-file thread.json --template incident-report
  scribe runs list --status failed
  scribe worker`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "scribe version "+version)
				return err
			}
			return cmd.Help()
		},
	}

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newRunsCommand())
	cmd.AddCommand(newWorkerCommand())
	cmd.AddCommand(newTemplatesCommand())

	return cmd
}
