package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/search"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		mode  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the agent's memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = savedPreferences(opts).SearchMode
			}
			a := openApp(opts.cfg)
			defer a.Close()

			items, err := a.search.Search(cmd.Context(), search.Request{
				Query: strings.Join(args, " "),
				Mode:  search.ParseMode(mode, search.ModeHybrid),
				Limit: limit,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			renderSearch(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "lexical, semantic or hybrid (default from settings)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default from config)")
	return cmd
}
