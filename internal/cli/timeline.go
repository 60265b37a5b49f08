package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/timeline"
)

func newTimelineCommand(opts *rootOptions) *cobra.Command {
	var (
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the unified activity timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since < 0 {
				return fmt.Errorf("--since must not be negative")
			}
			a := openApp(opts.cfg)
			defer a.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			events := a.feed(a.sources()).Timeline(cmd.Context(), from, limit)
			renderTimeline(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "only events newer than this (0 for all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", timeline.DefaultLimit, "maximum events")
	return cmd
}
