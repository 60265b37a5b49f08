package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/tui"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		window   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the unified timeline in a live terminal view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = opts.cfg.Live.PushInterval
			}
			a := openApp(opts.cfg)
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := tui.New(a.feed(a.sources()), interval, window)
			return tui.Run(ctx, m, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh period (default from config, 0 for manual only)")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "only events newer than this (0 for all)")
	return cmd
}
