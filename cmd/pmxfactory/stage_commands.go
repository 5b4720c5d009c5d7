package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pmxfactory/internal/ipc"
	"pmxfactory/internal/topology"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:     "stages",
		Aliases: []string{"stage"},
		Short:   "Create and list output stages",
	}
	stageCmd.AddCommand(newStageCreateCommand(ctx))
	stageCmd.AddCommand(newStageListCommand(ctx))
	return stageCmd
}

func newStageCreateCommand(ctx *commandContext) *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Assemble an output stage from two basic strips and a cross-fader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateStage(cmd, ctx, args[0], requestID)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id recorded in the assembly journal")
	return cmd
}

// newCreateOutputStageCommand is the flag-style form of "stages create".
func newCreateOutputStageCommand(ctx *commandContext) *cobra.Command {
	var name string
	var requestID string
	cmd := &cobra.Command{
		Use:   "create-output-stage",
		Short: "Assemble an output stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateStage(cmd, ctx, name, requestID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Output stage name")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id recorded in the assembly journal")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runCreateStage(cmd *cobra.Command, ctx *commandContext, name, requestID string) error {
	return ctx.withClient(func(client *ipc.Client) error {
		stage, err := client.CreateOutputStage(ipc.CreateOutputStageRequest{
			RequestID: strings.TrimSpace(requestID),
			Name:      name,
		})
		if err != nil {
			return reportFailure(cmd, ctx, err)
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, stage)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created output stage %d %q\n", stage.ID, stage.Name)
		fmt.Fprint(cmd.OutOrStdout(), renderStageTable([]topology.OutputStage{stage}))
		return nil
	})
}

func newStageListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List output stages recorded by the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stages, err := client.OutputStages()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stages)
				}
				if len(stages) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No output stages")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderStageTable(stages))
				return nil
			})
		},
	}
}

func renderStageTable(stages []topology.OutputStage) string {
	rows := make([][]string, 0, len(stages))
	for _, stage := range stages {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(stage.ID), 10),
			stage.Name,
			strconv.FormatUint(uint64(stage.LeftChannelStripID), 10),
			strconv.FormatUint(uint64(stage.RightChannelStripID), 10),
			strconv.FormatUint(uint64(stage.CrossFaderPluginID), 10),
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Left", "Right", "Fader"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	)
}
