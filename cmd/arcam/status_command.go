package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arcam/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, preflight, and session status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), client, ctx.configValue())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range statusLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range checkLines(status.Checks, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Sessions", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := sessionRows(status.Sessions)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No open sessions")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Session", "Device", "Strategy", "Page", "Fixes", "Retry"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
