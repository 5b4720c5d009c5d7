package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pmxfactory/internal/ipc"
	"pmxfactory/internal/topology"
)

func newStripCommand(ctx *commandContext) *cobra.Command {
	stripCmd := &cobra.Command{
		Use:     "strips",
		Aliases: []string{"strip"},
		Short:   "Create and list channel strips",
	}
	stripCmd.AddCommand(newStripCreateCommand(ctx))
	stripCmd.AddCommand(newStripListCommand(ctx))
	return stripCmd
}

func newStripCreateCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var requestID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Assemble a channel strip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateStrip(cmd, ctx, args[0], kind, requestID)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(topology.KindCrossFaded), "Strip kind: basic or cross_faded")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id recorded in the assembly journal")
	return cmd
}

// newCreateChannelStripCommand is the flag-style form of "strips create".
func newCreateChannelStripCommand(ctx *commandContext) *cobra.Command {
	var name string
	var basic bool
	var requestID string
	cmd := &cobra.Command{
		Use:   "create-channel-strip",
		Short: "Assemble a channel strip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := topology.KindCrossFaded
			if basic {
				kind = topology.KindBasic
			}
			return runCreateStrip(cmd, ctx, name, string(kind), requestID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Channel strip name")
	cmd.Flags().BoolVar(&basic, "basic", false, "Build a basic strip without a cross-fader")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id recorded in the assembly journal")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runCreateStrip(cmd *cobra.Command, ctx *commandContext, name, kind, requestID string) error {
	return ctx.withClient(func(client *ipc.Client) error {
		strip, err := client.CreateChannelStrip(ipc.CreateChannelStripRequest{
			RequestID: strings.TrimSpace(requestID),
			Name:      name,
			Kind:      kind,
		})
		if err != nil {
			return reportFailure(cmd, ctx, err)
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, strip)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created channel strip %d %q (%s)\n", strip.ID, strip.Name, humanize(string(strip.Kind)))
		fmt.Fprint(out, renderTable([]string{"Role", "Plugin", "URI"}, pluginRows(strip), []columnAlignment{alignLeft, alignRight, alignLeft}))
		return nil
	})
}

func newStripListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List channel strips recorded by the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				strips, err := client.ChannelStrips()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, strips)
				}
				out := cmd.OutOrStdout()
				if len(strips) == 0 {
					fmt.Fprintln(out, "No channel strips")
					return nil
				}
				rows := make([][]string, 0, len(strips))
				for _, strip := range strips {
					fader := "-"
					if strip.Plugins.CrossFader != nil {
						fader = strconv.FormatUint(uint64(strip.Plugins.CrossFader.ID), 10)
					}
					rows = append(rows, []string{
						strconv.FormatUint(uint64(strip.ID), 10),
						strip.Name,
						humanize(string(strip.Kind)),
						fader,
						strconv.FormatUint(uint64(strip.Plugins.Gain.ID), 10),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Kind", "Fader", "Gain"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func pluginRows(strip topology.ChannelStrip) [][]string {
	type entry struct {
		role   topology.Role
		plugin topology.PluginInstance
	}
	p := strip.Plugins
	entries := []entry{
		{topology.RoleSaturator, p.Saturator},
		{topology.RoleCompressor, p.Compressor},
		{topology.RoleEqualizer, p.Equalizer},
		{topology.RoleGain, p.Gain},
	}
	if p.CrossFader != nil {
		entries = append([]entry{{topology.RoleCrossFader, *p.CrossFader}}, entries...)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{humanize(string(e.role)), strconv.FormatUint(uint64(e.plugin.ID), 10), e.plugin.URI})
	}
	return rows
}

// reportFailure prints the step, role, and leg of a daemon-side failure
// before returning it.
func reportFailure(cmd *cobra.Command, ctx *commandContext, err error) error {
	var remote *ipc.RemoteError
	if !errors.As(err, &remote) {
		return err
	}
	if ctx.jsonOutput() {
		if encErr := writeJSON(cmd, remote.ErrorResponse); encErr != nil {
			return encErr
		}
		return err
	}
	stderr := cmd.ErrOrStderr()
	if remote.Leg != "" {
		fmt.Fprintf(stderr, "  leg:  %s\n", remote.Leg)
	}
	if remote.Step != "" {
		fmt.Fprintf(stderr, "  step: %s\n", humanize(remote.Step))
	}
	if remote.Role != "" {
		fmt.Fprintf(stderr, "  role: %s\n", humanize(remote.Role))
	}
	if remote.Kind != "" {
		fmt.Fprintf(stderr, "  kind: %s\n", remote.Kind)
	}
	return err
}
