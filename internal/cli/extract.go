package cli

import (
	"github.com/spf13/cobra"
)

func newExtractCommand(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run one fact extraction pass over new memory items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = savedPreferences(opts).ExtractionMode
			}

			a := openApp(opts.cfg)
			defer a.Close()

			run, err := a.engine.ExtractFacts(cmd.Context(), mode)
			if err != nil {
				return err
			}
			renderExtraction(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "pattern or llm (default from settings)")
	return cmd
}
