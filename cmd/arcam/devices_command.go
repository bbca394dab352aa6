package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"arcam/internal/api"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/scoring"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List host cameras with their selection scores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog := devices.NewSysfsCatalog(logging.NewNop())
			devs, err := catalog.Enumerate(cmd.Context())
			if err != nil {
				return fmt.Errorf("enumerate cameras: %w", err)
			}
			engine := scoring.NewEngine(scoring.FromConfig(cfg.Scoring))
			resp := api.FromScored(devs, engine.Score(devs))
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			if len(resp.Devices) == 0 {
				fmt.Fprintln(stdout, "No cameras found")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Device", "Label", "Facing", "Score", "Rank", "Rules"},
				deviceRows(resp),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			if resp.Winner != "" {
				fmt.Fprintf(stdout, "Scoring winner: %s\n", resp.Winner)
			} else {
				fmt.Fprintln(stdout, "No camera scored above zero; negotiation falls through to keyword avoidance")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func deviceRows(resp api.DevicesResponse) [][]string {
	rows := make([][]string, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		score, rank := "-", "-"
		if !d.Excluded {
			score = fmt.Sprint(d.Score)
			rank = fmt.Sprint(d.Rank)
		}
		rules := strings.Join(d.Rules, ", ")
		if d.Excluded {
			rules = "excluded (front camera)"
		}
		label := valueOrDash(d.Label)
		if d.ID == resp.Winner {
			label += " *"
		}
		rows = append(rows, []string{d.ID, label, valueOrDash(d.Facing), score, rank, valueOrDash(rules)})
	}
	return rows
}
