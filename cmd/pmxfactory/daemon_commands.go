package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"pmxfactory/internal/api"
	"pmxfactory/internal/daemonrun"
	"pmxfactory/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pmxfactory daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Shutdown()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}

	var skipChecks bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, actor, and backend status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status(!skipChecks)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				renderDaemonStatus(cmd, status)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&skipChecks, "no-checks", false, "Skip backend reachability checks")

	return []*cobra.Command{daemonCmd, stopCmd, statusCmd}
}

func renderDaemonStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	p := newStatusPrinter(out)

	p.section("Daemon")
	p.line("Running", statusFor(status.Running), "pid %d", status.PID)
	p.line("Journal", statusInfo, "%s (%s)", status.JournalDriver, status.JournalSource)
	p.line("Socket", statusInfo, "%s", status.SocketPath)

	actor := status.Factory
	p.section("Assembly Actor")
	p.line("Accepting", statusFor(actor.Running), "%s", yesNo(actor.Running))
	p.line("Mailbox", statusInfo, "%d/%d queued", actor.MailboxDepth, actor.MailboxCapacity)
	p.line("Next strip id", statusInfo, "%d", actor.NextChannelStripID)
	p.line("Processed", statusInfo, "%d", actor.Processed)

	if len(status.Checks) > 0 {
		p.section("Backends")
		for _, check := range status.Checks {
			p.line(check.Name, statusFor(check.Passed), "%s", check.Detail)
		}
	}

	p.section("Assemblies")
	names := make([]string, 0, len(status.AssemblyStats))
	for name := range status.AssemblyStats {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{humanize(name), strconv.Itoa(status.AssemblyStats[name])})
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
