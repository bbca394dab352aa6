package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arcam/internal/api"
	"arcam/internal/config"
	"arcam/internal/logging"
	"arcam/internal/prefstore"
)

func newPreferenceCommand(ctx *commandContext) *cobra.Command {
	prefCmd := &cobra.Command{
		Use:     "pref",
		Aliases: []string{"preference"},
		Short:   "Show or change the stored camera preference",
	}

	prefCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored camera",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := withPreferences(ctx,
				func(c *api.Client) (api.PreferenceResponse, error) { return c.Preference(cmd.Context()) },
				func(s *prefstore.Store) (api.PreferenceResponse, error) {
					id, ok, err := s.Get(cmd.Context())
					return api.PreferenceResponse{DeviceID: id, Set: ok}, err
				})
			if err != nil {
				return err
			}
			if !resp.Set {
				fmt.Fprintln(cmd.OutOrStdout(), "No camera preference stored")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.DeviceID)
			return nil
		},
	})

	prefCmd.AddCommand(&cobra.Command{
		Use:   "set <device-id>",
		Short: "Store the camera the next session should use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("device id is required")
			}
			_, err := withPreferences(ctx,
				func(c *api.Client) (api.PreferenceResponse, error) { return c.SetPreference(cmd.Context(), id) },
				func(s *prefstore.Store) (api.PreferenceResponse, error) {
					return api.PreferenceResponse{DeviceID: id, Set: true}, s.Set(cmd.Context(), id)
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preferred camera set to %s\n", id)
			return nil
		},
	})

	var reset bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored camera",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			if reset {
				return resetPreferenceStore(cmd.Context(), ctx, stdout)
			}
			_, err := withPreferences(ctx,
				func(c *api.Client) (api.PreferenceResponse, error) {
					return api.PreferenceResponse{}, c.ClearPreference(cmd.Context())
				},
				func(s *prefstore.Store) (api.PreferenceResponse, error) {
					return api.PreferenceResponse{}, s.Delete(cmd.Context())
				})
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Camera preference cleared")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&reset, "reset", false, "Delete the preference database (daemon must be stopped)")
	prefCmd.AddCommand(clearCmd)

	return prefCmd
}

// withPreferences runs viaAPI against a running daemon and falls back to the
// local database when the daemon is down.
func withPreferences(
	cc *commandContext,
	viaAPI func(*api.Client) (api.PreferenceResponse, error),
	viaStore func(*prefstore.Store) (api.PreferenceResponse, error),
) (api.PreferenceResponse, error) {
	client, err := cc.apiClient()
	if err != nil {
		return api.PreferenceResponse{}, err
	}
	resp, err := viaAPI(client)
	if err == nil || !api.IsUnavailable(err) {
		return resp, err
	}

	cfg := cc.configValue()
	store, err := prefstore.Open(cfg.PreferencePath(), logging.NewNop())
	if err != nil {
		return api.PreferenceResponse{}, fmt.Errorf("open preference store: %w", err)
	}
	defer store.Close()
	return viaStore(store)
}

func resetPreferenceStore(ctx context.Context, cc *commandContext, out io.Writer) error {
	client, err := cc.apiClient()
	if err != nil {
		return err
	}
	if status, err := client.Status(ctx); err == nil && status.Running {
		return errors.New("daemon is running; stop it with `arcam daemon stop` before resetting the preference database")
	}
	cfg := cc.configValue()
	removed, err := removeDatabase(cfg)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintln(out, "No preference database to reset")
		return nil
	}
	fmt.Fprintf(out, "Deleted %s\n", cfg.PreferencePath())
	return nil
}

func removeDatabase(cfg *config.Config) (bool, error) {
	path := cfg.PreferencePath()
	removed := false
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = removed || p == path
		case errors.Is(err, os.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return removed, nil
}
