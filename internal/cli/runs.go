package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/output"
	"github.com/scribehq/scribe/internal/run"
	"github.com/scribehq/scribe/internal/store"
)

// timeRounding keeps printed durations readable.
const timeRounding = 10 * time.Millisecond

// newRunsCommand creates the runs command group for inspecting run records.
func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and manage run records",
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsCancelCommand())
	cmd.AddCommand(newRunsCleanupCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	var (
		statusFilter string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *run.Status
			if statusFilter != "" {
				if !run.IsValidStatus(statusFilter) {
					return fmt.Errorf("invalid status %q; must be one of: pending, running, completed, failed, cancelled", statusFilter)
				}
				s := run.Status(statusFilter)
				status = &s
			}

			st, err := openStoreFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.List(status, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORKFLOW\tSTATUS\tCREATED\tDURATION")
			for _, rec := range records {
				duration := "-"
				if rec.StartedAt != nil && rec.FinishedAt != nil {
					duration = rec.Duration().Round(timeRounding).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.ID,
					rec.WorkflowName,
					rec.Status,
					rec.CreatedAt.Format(time.RFC3339),
					duration,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run record including its step log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rec, err := st.Get(args[0])
			if err != nil {
				return err
			}

			printer := output.NewPrinter()
			printer.Println("ID:        " + rec.ID)
			printer.Println("Workflow:  " + rec.WorkflowName)
			printer.Println("Status:    " + string(rec.Status))
			printer.Println("Created:   " + rec.CreatedAt.Format(time.RFC3339))
			if rec.StartedAt != nil {
				printer.Println("Started:   " + rec.StartedAt.Format(time.RFC3339))
			}
			if rec.FinishedAt != nil {
				printer.Println("Finished:  " + rec.FinishedAt.Format(time.RFC3339))
				printer.Println("Duration:  " + rec.Duration().Round(timeRounding).String())
			}
			if rec.ErrorMessage != "" {
				printer.Error("Error: %s", rec.ErrorMessage)
			}

			if len(rec.Steps) > 0 {
				printer.Println()
				printer.Println("Steps:")
				for _, step := range rec.Steps {
					if step.Error != "" {
						printer.Error("%s: %s", step.Name, step.Error)
						continue
					}
					printer.Detail("%s%s", step.Name, formatStepData(step))
				}
			}
			return nil
		},
	}
}

func newRunsCancelCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a pending or running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rec, err := st.Get(args[0])
			if err != nil {
				return err
			}
			if err := rec.MarkCancelled(reason); err != nil {
				return err
			}
			if err := st.Save(rec); err != nil {
				return err
			}

			output.NewPrinter().Success("Run %s cancelled", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Optional reason recorded on the run")

	return cmd
}

func newRunsCleanupCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished runs older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			deleted, err := st.CleanupOld(olderThan)
			if err != nil {
				return err
			}

			output.NewPrinter().Success("Deleted %d finished runs older than %s", deleted, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of finished runs to delete")

	return cmd
}

// openStoreFromEnv loads configuration and opens the run store.
func openStoreFromEnv() (*store.Store, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}

// formatStepData renders a step's recorded data as a compact suffix.
func formatStepData(step run.Step) string {
	if len(step.Data) == 0 {
		return ""
	}
	suffix := ""
	for key, value := range step.Data {
		suffix += fmt.Sprintf(" %s=%v", key, value)
	}
	return suffix
}
