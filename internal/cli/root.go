// Package cli implements the clawscope command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrypster/clawscope/internal/config"
	"github.com/scrypster/clawscope/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

// NewRootCommand builds the clawscope command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "clawscope",
		Short:         "Dashboard and MCP tools for an OpenClaw agent platform",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			logging.New("clawscope", cfg.Log.Level)
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default $"+config.ConfigFileEnv+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCommand(opts),
		newMCPCommand(opts),
		newSearchCommand(opts),
		newTimelineCommand(opts),
		newTasksCommand(opts),
		newExtractCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

// Execute runs the command tree against os.Args and returns the process
// exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(root *cobra.Command, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("error: "+err.Error()))
		return 1
	}
	return 0
}
