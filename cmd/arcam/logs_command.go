package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"arcam/internal/api"
	"arcam/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var component string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()

			opts := logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component: component,
					SessionID: sessionID,
				},
				LogPath: filepath.Join(cfg.Paths.LogDir, "arcam.log"),
			}
			printed, err := logstream.Stream(cmd.Context(), client, opts,
				func(evt api.LogEvent) { fmt.Fprintln(stdout, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(stdout, line) },
			)
			if errors.Is(err, logstream.ErrFiltersRequireAPI) {
				return fmt.Errorf("--component and --session need a running daemon: %w", err)
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(stdout, "No log entries")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new entries")
	cmd.Flags().StringVar(&component, "component", "", "Only show entries from this component")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only show entries for this session id")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp)
	b.WriteByte(' ')
	b.WriteString(evt.Level)
	if evt.Component != "" {
		b.WriteString(" [")
		b.WriteString(evt.Component)
		b.WriteByte(']')
	}
	if evt.SessionID != "" {
		b.WriteString(" Session ")
		b.WriteString(shortSessionID(evt.SessionID))
	}
	b.WriteString(" – ")
	b.WriteString(evt.Message)
	if evt.DeviceID != "" {
		b.WriteString(" (")
		b.WriteString(evt.DeviceID)
		b.WriteByte(')')
	}
	return b.String()
}
