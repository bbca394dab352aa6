package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/prefstore"
	"arcam/internal/v4l2"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var selectOnly bool
	var ignorePreference bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Negotiate a host camera the way an AR session would",
		Long: "Runs camera selection and a capture request against local V4L2 devices,\n" +
			"then releases the device. Use --select-only to skip opening the camera.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:       ctx.resolvedLogLevel(cfg),
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
				Development: ctx.logDevelopment(cfg),
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			var prefs capture.Preferences
			if !ignorePreference {
				store, err := prefstore.Open(cfg.PreferencePath(), logger)
				if err != nil {
					return fmt.Errorf("open preference store: %w", err)
				}
				defer store.Close()
				prefs = store
			}

			platform := v4l2.NewPlatform(devices.NewSysfsCatalog(logger), logger)
			negotiator := capture.NewNegotiator(cfg, platform, prefs, nil, logger)
			stdout := cmd.OutOrStdout()

			if selectOnly {
				sel, err := negotiator.Select(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, sel)
				}
				if sel.Device == nil {
					fmt.Fprintf(stdout, "No camera listed; would request facing %q\n", cfg.Camera.FacingHint)
					return nil
				}
				fmt.Fprintf(stdout, "Selected %s (%s) via %s\n", sel.Device.ID, valueOrDash(sel.Device.Label), sel.Strategy)
				return nil
			}

			res, err := negotiator.Negotiate(cmd.Context())
			if err != nil {
				kind := capture.Classify(err)
				remedy := capture.RemediationFor(kind)
				if jsonOutput {
					_ = writeJSON(cmd, map[string]any{"ok": false, "kind": kind, "message": remedy.Message})
				}
				return fmt.Errorf("%s: %w", remedy.Message, err)
			}
			if jsonOutput {
				return writeJSON(cmd, res)
			}
			for _, line := range probeLines(res) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&selectOnly, "select-only", false, "Run selection without opening the camera")
	cmd.Flags().BoolVar(&ignorePreference, "ignore-preference", false, "Skip the stored camera preference")
	return cmd
}

func probeLines(res *capture.Result) []string {
	lines := []string{
		fmt.Sprintf("Device:     %s (%s)", res.Device.ID, valueOrDash(res.Device.Label)),
		fmt.Sprintf("Strategy:   %s", res.Strategy),
		fmt.Sprintf("Resolution: %dx%d", res.Settings.Width, res.Settings.Height),
		fmt.Sprintf("Attempts:   %d (fallback: %s)", res.Attempts, yesNo(res.Fallback)),
	}
	if z := res.Capabilities.Zoom; z != nil {
		lines = append(lines, fmt.Sprintf("Zoom range: %g-%g", z.Min, z.Max))
	}
	if len(res.Capabilities.FocusModes) > 0 {
		lines = append(lines, fmt.Sprintf("Focus:      %v", res.Capabilities.FocusModes))
	}
	return lines
}
