package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pmxfactory/internal/api"
	"pmxfactory/internal/ipc"
)

func newAssemblyCommand(ctx *commandContext) *cobra.Command {
	assemblyCmd := &cobra.Command{
		Use:     "assemblies",
		Aliases: []string{"journal"},
		Short:   "Inspect the assembly journal",
	}
	assemblyCmd.AddCommand(newAssemblyListCommand(ctx))
	assemblyCmd.AddCommand(newAssemblyShowCommand(ctx))
	return assemblyCmd
}

func newAssemblyListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				entries, err := client.AssemblyList(statuses)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No assemblies")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						humanize(entry.Kind),
						entry.Name,
						humanize(entry.Status),
						resultText(entry),
						failureText(entry),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Kind", "Name", "Status", "Result", "Failure"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, assembling, completed, failed, abandoned, orphaned)")
	return cmd
}

func newAssemblyShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid assembly id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				entry, err := client.AssemblyDescribe(id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fields := [][2]string{
					{"ID", strconv.FormatInt(entry.ID, 10)},
					{"Request", entry.RequestID},
					{"Kind", humanize(entry.Kind)},
					{"Name", entry.Name},
					{"Strip kind", humanize(entry.StripKind)},
					{"Status", humanize(entry.Status)},
					{"Result", resultText(*entry)},
					{"Failure", failureText(*entry)},
					{"Error", entry.Error},
					{"Created", entry.CreatedAt},
					{"Updated", entry.UpdatedAt},
				}
				for _, field := range fields {
					value := field[1]
					if value == "" {
						value = "-"
					}
					fmt.Fprintf(out, "%-11s %s\n", field[0]+":", value)
				}
				return nil
			})
		},
	}
}

func resultText(entry api.Assembly) string {
	if entry.ResultID == nil {
		return "-"
	}
	return strconv.FormatInt(*entry.ResultID, 10)
}

func failureText(entry api.Assembly) string {
	if entry.FailedStep == "" {
		return "-"
	}
	if entry.FailedRole == "" {
		return humanize(entry.FailedStep)
	}
	return humanize(entry.FailedRole) + " " + humanize(entry.FailedStep)
}
