package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:   "pmxfactory",
		Short: "Assemble audio channel strips and output stages",
		Long: "pmxfactory drives a plugin host, an audio graph, and a topology registry\n" +
			"to build channel strips and stereo output stages. Most commands talk to a\n" +
			"running daemon over its local socket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&ctx.flags.socket, "socket", "", "Daemon socket (default <log_dir>/pmxfactory.sock)")
	flags.StringVarP(&ctx.flags.config, "config", "c", "", "Configuration file path")
	flags.BoolVar(&ctx.flags.json, "json", false, "Write machine-readable JSON output")

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newCreateChannelStripCommand(ctx),
		newCreateOutputStageCommand(ctx),
		newStripCommand(ctx),
		newStageCommand(ctx),
		newAssemblyCommand(ctx),
		newLogsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
