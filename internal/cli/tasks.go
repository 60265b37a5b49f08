package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/providers"
)

func newTasksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List scheduled cron jobs, reminders and heartbeats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openApp(opts.cfg)
			defer a.Close()

			tasks, err := providers.NewTaskProvider(a.sources()).List(cmd.Context())
			if err != nil {
				log.Warn().Err(err).Msg("platform unreachable")
			}
			renderTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}
