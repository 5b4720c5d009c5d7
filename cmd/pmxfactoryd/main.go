// Command pmxfactoryd runs the pmxfactory daemon without the CLI wrapper,
// for service managers that expect a dedicated binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pmxfactory/internal/config"
	"pmxfactory/internal/daemonrun"
)

type daemonFlags struct {
	configPath string
	logLevel   string
}

// runDaemon is swapped in tests.
var runDaemon = daemonrun.Run

func newRootCommand() *cobra.Command {
	var flags daemonFlags
	cmd := &cobra.Command{
		Use:           "pmxfactoryd",
		Short:         "Run the pmxfactory assembly daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runDaemon(cmd.Context(), cfg, daemonrun.Options{LogLevel: flags.logLevel})
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
