package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/output"
	"github.com/scribehq/scribe/internal/prompts"
)

// newTemplatesCommand creates the templates command listing the transform
// templates available to runs.
func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available transform templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			registry, err := prompts.LoadRegistry(cfg.TemplatesFile)
			if err != nil {
				return err
			}

			names := registry.Names()
			sort.Strings(names)

			printer := output.NewPrinter()
			for _, name := range names {
				template, err := registry.Resolve(name)
				if err != nil {
					return err
				}
				if template.DatabaseID != "" {
					printer.Println(name + " -> " + template.DatabaseID)
				} else {
					printer.Println(name)
				}
			}
			return nil
		},
	}
}
