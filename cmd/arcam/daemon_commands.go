package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"arcam/internal/daemonctl"
	"arcam/internal/daemonrun"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the arcam daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonRestartCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: ctx.logDevelopment(cfg),
				Local:       local,
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Negotiate against host V4L2 cameras instead of the page bridge")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, ctx.launchOptions(local), startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Negotiate against host V4L2 cameras instead of the page bridge")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cmd.Context(), client, ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonRestartCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if _, err := daemonctl.Stop(cmd.Context(), client, ctx.configValue(), stopGracePeriod); err == nil {
				fmt.Fprintln(stdout, "Daemon stopped")
			} else if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, ctx.launchOptions(local), startWaitTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Negotiate against host V4L2 cameras instead of the page bridge")
	return cmd
}

func (c *commandContext) launchOptions(local bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{Local: local}
	if path := c.configPath(); path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		opts.ConfigPath = path
	}
	return opts
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
