package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/server"
	"github.com/scrypster/clawscope/internal/settings"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a := openApp(cfg)
			defer a.Close()

			srv, err := server.New(cfg, a.services())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := srv.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("ClawScope running at http://"+addr))

			<-ctx.Done()
			log.Info().Msg("shutting down")
			<-srv.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

// services wires the dashboard handlers to the app's collaborators.
func (a *app) services() server.Services {
	feed := a.feed(a.sources())
	store := settings.NewStore(a.cfg.Storage.SettingsPath)
	return server.Services{
		Searcher:  a.search,
		Memory:    a.engine,
		Extractor: a.engine,
		Sessions:  feed.Sessions,
		Tasks:     feed.Tasks,
		Activity:  feed.Activity,
		Feed:      feed,
		Settings:  store,
		Status: &settings.Reporter{
			Store:        store,
			MemoryDBPath: a.cfg.Storage.MemoryDBPath,
			CompanionURL: a.cfg.Upstream.CompanionURL,
			Marker:       a.engine,
		},
	}
}
