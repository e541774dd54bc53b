package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/output"
	"github.com/scribehq/scribe/internal/worker"
)

// newWorkerCommand creates the worker command: a foreground poll loop that
// executes pending runs until interrupted.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker that executes pending runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := output.NewPrinter()

			cfg, err := config.New()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			engine, err := buildEngine(cfg, st)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			printer.Info("Worker polling every %s (Ctrl-C to stop)", cfg.Worker.PollInterval)
			return worker.New(st, engine, cfg.Worker.PollInterval).Run(ctx)
		},
	}
}
