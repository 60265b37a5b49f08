package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/api/mcp"
	"github.com/scrypster/clawscope/internal/cache"
	"github.com/scrypster/clawscope/internal/providers"
)

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Long: "Serve the MCP tools over stdio. Only protocol frames are written to " +
			"stdout; logs go to stderr. Platform data is read through the CLI only.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openApp(opts.cfg)
			defer a.Close()

			src := a.cliSources()
			srv := mcp.NewServer(mcp.Deps{
				Sessions: providers.NewSessionProvider(src, cache.NewSlot[[]providers.Session](opts.cfg.Upstream.SessionCacheTTL)),
				Tasks:    providers.NewTaskProvider(src),
				Activity: providers.NewActivityProvider(src),
				Search:   a.search,
				Graph:    a.engine,
			}, Version)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Msg("serving MCP on stdio")
			if err := srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
